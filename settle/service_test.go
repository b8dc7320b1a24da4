package settle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"skillsync/identity"
	"skillsync/request"
)

func activeRequest() request.HelpRequest {
	mentor := "mentor-1"
	accepted := time.Now().Add(-time.Minute)
	return request.HelpRequest{
		ID:          "req-1",
		RequesterID: "dev-1",
		MentorID:    &mentor,
		Description: "auth flow failing",
		BountyCents: 5000,
		Status:      request.StatusActive,
		CreatedAt:   time.Now().Add(-2 * time.Minute),
		AcceptedAt:  &accepted,
	}
}

func TestResolve_Success(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{
		req:      activeRequest(),
		balances: Balances{RequesterCents: 20000, MentorCents: 0},
	}
	notifier := &fakeNotifier{}
	svc := NewService(pool, repo, notifier, nil)

	receipt, err := svc.Resolve(context.Background(), "req-1", "dev-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !pool.tx.committed {
		t.Error("expected commit to be called")
	}
	if !repo.applied {
		t.Error("expected settlement to be applied")
	}
	if receipt.RequesterBalanceCents != 15000 {
		t.Errorf("expected requester balance 15000, got %d", receipt.RequesterBalanceCents)
	}
	if receipt.MentorBalanceCents != 5000 {
		t.Errorf("expected mentor balance 5000, got %d", receipt.MentorBalanceCents)
	}
	if notifier.calls != 1 {
		t.Errorf("expected one change notification, got %d", notifier.calls)
	}
}

func TestResolve_OnlyRequester(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{req: activeRequest(), balances: Balances{RequesterCents: 20000}}
	svc := NewService(pool, repo, nil, nil)

	_, err := svc.Resolve(context.Background(), "req-1", "mentor-1")
	if !errors.Is(err, request.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.applied {
		t.Error("settlement must not apply for a non-requester caller")
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped")
	}
}

func TestResolve_AlreadyResolvedIsNoOp(t *testing.T) {
	req := activeRequest()
	req.Status = request.StatusResolved
	pool := &fakePool{}
	repo := &fakeRepo{req: req, balances: Balances{RequesterCents: 20000}}
	svc := NewService(pool, repo, nil, nil)

	_, err := svc.Resolve(context.Background(), "req-1", "dev-1")
	if !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.applied {
		t.Error("double settlement must never move funds")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback")
	}
}

func TestResolve_InsufficientFunds(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{
		req:      activeRequest(),
		balances: Balances{RequesterCents: 1000, MentorCents: 0},
	}
	svc := NewService(pool, repo, nil, nil)

	_, err := svc.Resolve(context.Background(), "req-1", "dev-1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.applied {
		t.Error("no funds may move when the balance check fails")
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped")
	}
}

func TestResolve_ProfileMissing(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{
		req:         activeRequest(),
		balancesErr: identity.ErrProfileNotFound,
	}
	svc := NewService(pool, repo, nil, nil)

	_, err := svc.Resolve(context.Background(), "req-1", "dev-1")
	if !errors.Is(err, identity.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if repo.applied {
		t.Error("settlement must not apply with a missing profile")
	}
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) NotifyChanged(ctx context.Context) { f.calls++ }

type fakeRepo struct {
	req         request.HelpRequest
	reqErr      error
	balances    Balances
	balancesErr error
	applied     bool
}

func (f *fakeRepo) GetRequestForUpdate(ctx context.Context, tx pgx.Tx, id string) (request.HelpRequest, error) {
	if f.reqErr != nil {
		return request.HelpRequest{}, f.reqErr
	}
	return f.req, nil
}

func (f *fakeRepo) GetBalancesForUpdate(ctx context.Context, tx pgx.Tx, requesterID, mentorID string) (Balances, error) {
	if f.balancesErr != nil {
		return Balances{}, f.balancesErr
	}
	return f.balances, nil
}

func (f *fakeRepo) ApplySettlement(ctx context.Context, tx pgx.Tx, params ApplyParams) (Receipt, error) {
	f.applied = true
	return Receipt{
		RequestID:             params.RequestID,
		BountyCents:           params.BountyCents,
		RequesterBalanceCents: f.balances.RequesterCents - params.BountyCents,
		MentorBalanceCents:    f.balances.MentorCents + params.BountyCents,
		ResolvedAt:            time.Now(),
	}, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
