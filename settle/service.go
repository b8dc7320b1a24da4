package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"skillsync/identity"
	"skillsync/request"
)

// ErrInsufficientFunds signals the requester cannot cover the bounty.
// The session stays active and no funds move.
var ErrInsufficientFunds = errors.New("settle: insufficient funds")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier lets settlement tell directory watchers about the terminal
// transition after commit.
type Notifier interface {
	NotifyChanged(ctx context.Context)
}

// Service performs the atomic bounty settlement: debit the requester,
// credit the mentor, and resolve the request, all within one transaction.
type Service struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

func NewService(pool TxBeginner, repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Resolve settles the bounty for an active session. Only the requester
// may call it. Re-invoking on an already-resolved session fails the
// active-status precondition, so the transfer can never apply twice.
func (s *Service) Resolve(ctx context.Context, requestID, callerID string) (Receipt, error) {
	if requestID == "" || callerID == "" {
		return Receipt{}, fmt.Errorf("%w: missing request or caller id", request.ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("settle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.repo.GetRequestForUpdate(ctx, tx, requestID)
	if err != nil {
		return Receipt{}, err
	}
	if req.RequesterID != callerID {
		return Receipt{}, request.ErrForbidden
	}
	if req.Status != request.StatusActive {
		return Receipt{}, request.ErrInvalidTransition
	}
	if req.MentorID == nil {
		// The state machine makes this unreachable; refuse rather than guess.
		s.logger.ErrorContext(ctx, "active request without mentor", "request_id", requestID)
		return Receipt{}, fmt.Errorf("settle: active request %s has no mentor", requestID)
	}

	balances, err := s.repo.GetBalancesForUpdate(ctx, tx, req.RequesterID, *req.MentorID)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			s.logger.ErrorContext(ctx, "settlement profile missing",
				"request_id", requestID, "requester_id", req.RequesterID, "mentor_id", *req.MentorID)
		}
		return Receipt{}, err
	}
	if balances.RequesterCents < req.BountyCents {
		return Receipt{}, ErrInsufficientFunds
	}

	receipt, err := s.repo.ApplySettlement(ctx, tx, ApplyParams{
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		MentorID:    *req.MentorID,
		BountyCents: req.BountyCents,
	})
	if err != nil {
		return Receipt{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("settle: commit: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyChanged(ctx)
	}

	return receipt, nil
}
