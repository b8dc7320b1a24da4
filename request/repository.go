package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestColumns = `id, requester_id, mentor_id, description, language_tag, bounty_cents, status, created_at, accepted_at, resolved_at`

// Repository handles data access for help requests.
type Repository interface {
	Create(ctx context.Context, req HelpRequest) (HelpRequest, error)
	GetByID(ctx context.Context, id string) (HelpRequest, error)
	ListPending(ctx context.Context) ([]HelpRequest, error)
	History(ctx context.Context, identityID string, party Party, limit int) ([]HelpRequest, error)
	LiveForParty(ctx context.Context, identityID string, party Party) (*HelpRequest, error)
	Accept(ctx context.Context, id, mentorID string) (HelpRequest, error)
	Cancel(ctx context.Context, id, requesterID string) (HelpRequest, error)
	Abort(ctx context.Context, id, callerID string) (HelpRequest, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, req HelpRequest) (HelpRequest, error) {
	const query = `
		INSERT INTO help_requests (id, requester_id, description, language_tag, bounty_cents, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + requestColumns

	row := r.pool.QueryRow(ctx, query,
		req.ID,
		req.RequesterID,
		req.Description,
		req.LanguageTag,
		req.BountyCents,
		req.Status,
	)

	created, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return HelpRequest{}, ErrRequestExists
		}
		return HelpRequest{}, fmt.Errorf("request: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (HelpRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM help_requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HelpRequest{}, ErrNotFound
		}
		return HelpRequest{}, fmt.Errorf("request: get by id: %w", err)
	}
	return req, nil
}

func (r *PGRepository) ListPending(ctx context.Context) ([]HelpRequest, error) {
	const query = `
		SELECT ` + requestColumns + `
		FROM help_requests
		WHERE status = 'pending'
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("request: list pending: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func (r *PGRepository) History(ctx context.Context, identityID string, party Party, limit int) ([]HelpRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT ` + requestColumns + `
		FROM help_requests
		WHERE ` + partyColumn(party) + ` = $1
		  AND status IN ('resolved','cancelled')
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("request: history: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// LiveForParty returns the identity's single pending or active request,
// or nil when there is none.
func (r *PGRepository) LiveForParty(ctx context.Context, identityID string, party Party) (*HelpRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM help_requests
		WHERE ` + partyColumn(party) + ` = $1
		  AND status IN ('pending','active')
		ORDER BY created_at DESC
		LIMIT 1
	`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, identityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("request: live for party: %w", err)
	}
	return &req, nil
}

// Accept claims a pending request for the mentor. The conditional update
// is the exclusivity guarantee: exactly one concurrent caller observes
// status='pending' and wins; everyone else gets ErrAlreadyClaimed.
func (r *PGRepository) Accept(ctx context.Context, id, mentorID string) (HelpRequest, error) {
	const query = `
		UPDATE help_requests
		SET status = 'active',
		    mentor_id = $2,
		    accepted_at = get_tx_timestamp()
		WHERE id = $1
		  AND status = 'pending'
		  AND requester_id <> $2
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id, mentorID))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return HelpRequest{}, fmt.Errorf("request: accept: %w", err)
	}

	// Zero rows: re-read to tell the caller why.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return HelpRequest{}, getErr
	}
	switch {
	case current.RequesterID == mentorID:
		return HelpRequest{}, ErrForbidden
	case current.Status == StatusActive || current.Status == StatusResolved:
		return HelpRequest{}, ErrAlreadyClaimed
	default:
		return HelpRequest{}, ErrInvalidTransition
	}
}

// Cancel transitions pending -> cancelled, requester only.
func (r *PGRepository) Cancel(ctx context.Context, id, requesterID string) (HelpRequest, error) {
	const query = `
		UPDATE help_requests
		SET status = 'cancelled'
		WHERE id = $1
		  AND requester_id = $2
		  AND status = 'pending'
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id, requesterID))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return HelpRequest{}, fmt.Errorf("request: cancel: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return HelpRequest{}, getErr
	}
	if current.RequesterID != requesterID {
		return HelpRequest{}, ErrForbidden
	}
	return HelpRequest{}, ErrInvalidTransition
}

// Abort transitions active -> cancelled. Either bound party may abort.
// The mentor binding is cleared so that mentor_id stays set exactly for
// active and resolved requests.
func (r *PGRepository) Abort(ctx context.Context, id, callerID string) (HelpRequest, error) {
	const query = `
		UPDATE help_requests
		SET status = 'cancelled',
		    mentor_id = NULL
		WHERE id = $1
		  AND status = 'active'
		  AND (requester_id = $2 OR mentor_id = $2)
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id, callerID))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return HelpRequest{}, fmt.Errorf("request: abort: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return HelpRequest{}, getErr
	}
	if current.Status == StatusActive {
		return HelpRequest{}, ErrForbidden
	}
	return HelpRequest{}, ErrInvalidTransition
}

func partyColumn(party Party) string {
	if party == PartyMentor {
		return "mentor_id"
	}
	return "requester_id"
}

func collectRequests(rows pgx.Rows) ([]HelpRequest, error) {
	list := make([]HelpRequest, 0, 8)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("request: scan: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request: iterate: %w", err)
	}
	return list, nil
}

func scanRequest(row pgx.Row) (HelpRequest, error) {
	var req HelpRequest
	return req, row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.MentorID,
		&req.Description,
		&req.LanguageTag,
		&req.BountyCents,
		&req.Status,
		&req.CreatedAt,
		&req.AcceptedAt,
		&req.ResolvedAt,
	)
}
