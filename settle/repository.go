package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"skillsync/identity"
	"skillsync/request"
)

// Repository defines the data access required by the settlement service.
// Every method runs inside the caller's transaction so the row locks
// taken here hold until commit.
type Repository interface {
	GetRequestForUpdate(ctx context.Context, tx pgx.Tx, id string) (request.HelpRequest, error)
	GetBalancesForUpdate(ctx context.Context, tx pgx.Tx, requesterID, mentorID string) (Balances, error)
	ApplySettlement(ctx context.Context, tx pgx.Tx, params ApplyParams) (Receipt, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

// GetRequestForUpdate locks the help request row for the transaction.
func (r *PGRepository) GetRequestForUpdate(ctx context.Context, tx pgx.Tx, id string) (request.HelpRequest, error) {
	const query = `
SELECT id, requester_id, mentor_id, description, language_tag, bounty_cents, status, created_at, accepted_at, resolved_at
FROM help_requests
WHERE id = $1
FOR UPDATE
`
	var req request.HelpRequest
	err := tx.QueryRow(ctx, query, id).Scan(
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
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return request.HelpRequest{}, request.ErrNotFound
		}
		return request.HelpRequest{}, fmt.Errorf("settle: lock request: %w", err)
	}
	return req, nil
}

// GetBalancesForUpdate locks both wallet rows in id order so concurrent
// settlements on overlapping identities cannot deadlock.
func (r *PGRepository) GetBalancesForUpdate(ctx context.Context, tx pgx.Tx, requesterID, mentorID string) (Balances, error) {
	const query = `
SELECT id::text, wallet_balance_cents
FROM users
WHERE id = ANY($1::uuid[])
ORDER BY id
FOR UPDATE
`
	rows, err := tx.Query(ctx, query, []string{requesterID, mentorID})
	if err != nil {
		return Balances{}, fmt.Errorf("settle: lock balances: %w", err)
	}
	defer rows.Close()

	var (
		bal   Balances
		found int
	)
	for rows.Next() {
		var (
			id    string
			cents int64
		)
		if err := rows.Scan(&id, &cents); err != nil {
			return Balances{}, fmt.Errorf("settle: scan balance: %w", err)
		}
		switch id {
		case requesterID:
			bal.RequesterCents = cents
			found++
		case mentorID:
			bal.MentorCents = cents
			found++
		}
	}
	if err := rows.Err(); err != nil {
		return Balances{}, fmt.Errorf("settle: iterate balances: %w", err)
	}
	if found != 2 {
		return Balances{}, identity.ErrProfileNotFound
	}
	return bal, nil
}

// ApplySettlement performs the debit, the credit, and the terminal status
// flip. The caller has already locked every touched row and verified the
// preconditions; a failed statement aborts the whole transaction.
func (r *PGRepository) ApplySettlement(ctx context.Context, tx pgx.Tx, params ApplyParams) (Receipt, error) {
	receipt := Receipt{
		RequestID:   params.RequestID,
		BountyCents: params.BountyCents,
	}

	const debitSQL = `
UPDATE users
SET wallet_balance_cents = wallet_balance_cents - $2
WHERE id = $1
RETURNING wallet_balance_cents
`
	if err := tx.QueryRow(ctx, debitSQL, params.RequesterID, params.BountyCents).Scan(&receipt.RequesterBalanceCents); err != nil {
		return Receipt{}, fmt.Errorf("settle: debit requester: %w", err)
	}

	const creditSQL = `
UPDATE users
SET wallet_balance_cents = wallet_balance_cents + $2
WHERE id = $1
RETURNING wallet_balance_cents
`
	if err := tx.QueryRow(ctx, creditSQL, params.MentorID, params.BountyCents).Scan(&receipt.MentorBalanceCents); err != nil {
		return Receipt{}, fmt.Errorf("settle: credit mentor: %w", err)
	}

	const resolveSQL = `
UPDATE help_requests
SET status = 'resolved',
    resolved_at = get_tx_timestamp()
WHERE id = $1 AND status = 'active'
RETURNING resolved_at
`
	var resolvedAt time.Time
	if err := tx.QueryRow(ctx, resolveSQL, params.RequestID).Scan(&resolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, request.ErrInvalidTransition
		}
		return Receipt{}, fmt.Errorf("settle: mark resolved: %w", err)
	}
	receipt.ResolvedAt = resolvedAt

	return receipt, nil
}
