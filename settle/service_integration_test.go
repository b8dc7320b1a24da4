package settle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"skillsync/request"
)

// TestResolve_Integration runs the full settlement transaction against a
// real PostgreSQL via DATABASE_URL: transfer on success, no movement on
// insufficient funds, and no double-apply.
func TestResolve_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, tbl := range []string{"users", "help_requests"} {
		if !schemaHasTable(ctx, pool, tbl) {
			t.Skipf("table %s does not exist; ensure migrations are applied", tbl)
		}
	}

	seedUser := func(role string, balanceCents int64) string {
		var id string
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, role, wallet_balance_cents) VALUES ($1, 'x', $2, $3) RETURNING id`,
			fmt.Sprintf("%s+%d@example.com", role, time.Now().UnixNano()), role, balanceCents,
		).Scan(&id); err != nil {
			t.Fatalf("seed %s: %v", role, err)
		}
		return id
	}

	requester := seedUser("developer", 20000)
	mentor := seedUser("mentor", 0)

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM help_requests WHERE requester_id = $1`, requester)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, requester, mentor)
	})

	requests := request.NewRepository(pool)
	svc := NewService(pool, NewRepository(), nil, nil)

	created, err := requests.Create(ctx, request.HelpRequest{
		RequesterID: requester,
		Description: "settle me",
		BountyCents: 5000,
		Status:      request.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := requests.Accept(ctx, created.ID, mentor); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Only the requester settles.
	if _, err := svc.Resolve(ctx, created.ID, mentor); !errors.Is(err, request.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for mentor caller, got %v", err)
	}

	receipt, err := svc.Resolve(ctx, created.ID, requester)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if receipt.RequesterBalanceCents != 15000 || receipt.MentorBalanceCents != 5000 {
		t.Fatalf("unexpected balances after settlement: requester=%d mentor=%d",
			receipt.RequesterBalanceCents, receipt.MentorBalanceCents)
	}
	if receipt.ResolvedAt.IsZero() {
		t.Fatal("expected resolved_at in receipt")
	}

	// Second settle is a rejected no-op: the request is no longer active.
	if _, err := svc.Resolve(ctx, created.ID, requester); !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double settle, got %v", err)
	}

	assertBalance := func(userID string, want int64) {
		t.Helper()
		var got int64
		if err := pool.QueryRow(ctx, `SELECT wallet_balance_cents FROM users WHERE id = $1`, userID).Scan(&got); err != nil {
			t.Fatalf("read balance: %v", err)
		}
		if got != want {
			t.Fatalf("balance for %s: expected %d, got %d", userID, want, got)
		}
	}
	assertBalance(requester, 15000)
	assertBalance(mentor, 5000)

	var status string
	var resolvedAt *time.Time
	if err := pool.QueryRow(ctx, `SELECT status, resolved_at FROM help_requests WHERE id = $1`, created.ID).Scan(&status, &resolvedAt); err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if status != "resolved" || resolvedAt == nil {
		t.Fatalf("expected resolved with timestamp, got %s %v", status, resolvedAt)
	}
}

func TestResolve_InsufficientFunds_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, tbl := range []string{"users", "help_requests"} {
		if !schemaHasTable(ctx, pool, tbl) {
			t.Skipf("table %s does not exist; ensure migrations are applied", tbl)
		}
	}

	var requester, mentor string
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, wallet_balance_cents) VALUES ($1, 'x', 'developer', 100) RETURNING id`,
		fmt.Sprintf("poor+%d@example.com", time.Now().UnixNano()),
	).Scan(&requester); err != nil {
		t.Fatalf("seed requester: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, wallet_balance_cents) VALUES ($1, 'x', 'mentor', 0) RETURNING id`,
		fmt.Sprintf("mentor+%d@example.com", time.Now().UnixNano()),
	).Scan(&mentor); err != nil {
		t.Fatalf("seed mentor: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM help_requests WHERE requester_id = $1`, requester)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, requester, mentor)
	})

	requests := request.NewRepository(pool)
	svc := NewService(pool, NewRepository(), nil, nil)

	created, err := requests.Create(ctx, request.HelpRequest{
		RequesterID: requester,
		Description: "too expensive",
		BountyCents: 5000,
		Status:      request.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := requests.Accept(ctx, created.ID, mentor); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.Resolve(ctx, created.ID, requester); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Failed settlement leaves everything untouched: balances and status.
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM help_requests WHERE id = $1`, created.ID).Scan(&status); err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if status != "active" {
		t.Fatalf("expected session to stay active, got %s", status)
	}
	var requesterBalance, mentorBalance int64
	if err := pool.QueryRow(ctx, `SELECT wallet_balance_cents FROM users WHERE id = $1`, requester).Scan(&requesterBalance); err != nil {
		t.Fatalf("read requester balance: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT wallet_balance_cents FROM users WHERE id = $1`, mentor).Scan(&mentorBalance); err != nil {
		t.Fatalf("read mentor balance: %v", err)
	}
	if requesterBalance != 100 || mentorBalance != 0 {
		t.Fatalf("expected balances unchanged, got requester=%d mentor=%d", requesterBalance, mentorBalance)
	}
}

func schemaHasTable(ctx context.Context, pool *pgxpool.Pool, name string) bool {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists); err != nil {
		return false
	}
	return exists
}
