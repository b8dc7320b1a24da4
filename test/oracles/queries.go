package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the SQL invariants checked between actor bursts. Each
// query selects violating rows; an empty result means the invariant
// holds. The stress run owns its database, so whole-table scans see
// exactly this run's rows.
func All() []Oracle {
	return []Oracle{
		{
			// Settlement only moves money between wallets; with no
			// top-ups in the run the total stays at the seeded grants.
			Name: "O1_balance_conservation",
			SQL: `SELECT SUM(wallet_balance_cents) AS total, COUNT(*) * 20000 AS seeded
                  FROM users
                  HAVING SUM(wallet_balance_cents) <> COUNT(*) * 20000`,
		},
		{
			Name: "O2_no_negative_balance",
			SQL:  `SELECT id, wallet_balance_cents FROM users WHERE wallet_balance_cents < 0`,
		},
		{
			Name: "O3_mentor_bound_iff_live_match",
			SQL: `SELECT id, status, mentor_id FROM help_requests
                  WHERE (mentor_id IS NOT NULL) <> (status IN ('active','resolved'))`,
		},
		{
			Name: "O4_one_live_request_per_requester",
			SQL: `SELECT requester_id, COUNT(*) FROM help_requests
                  WHERE status IN ('pending','active')
                  GROUP BY requester_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_self_mentoring",
			SQL:  `SELECT id FROM help_requests WHERE mentor_id = requester_id`,
		},
		{
			Name: "O6_timestamp_ordering",
			SQL: `SELECT id, status, created_at, accepted_at, resolved_at FROM help_requests
                  WHERE (status = 'resolved' AND (accepted_at IS NULL OR resolved_at IS NULL
                         OR accepted_at < created_at OR resolved_at < accepted_at))
                     OR (status = 'active' AND (accepted_at IS NULL OR accepted_at < created_at))
                     OR (status = 'pending' AND (accepted_at IS NOT NULL OR resolved_at IS NOT NULL))
                     OR (resolved_at IS NOT NULL AND status <> 'resolved')`,
		},
	}
}

// Run executes all SQL oracles and returns the first failure (name and
// sample row) or an empty name when every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}

// TerminalGuard detects regressions a point-in-time query cannot: once
// a request has been observed resolved or cancelled, any later snapshot
// showing a different status is a violation.
type TerminalGuard struct {
	terminal map[string]string
}

func NewTerminalGuard() *TerminalGuard {
	return &TerminalGuard{terminal: make(map[string]string)}
}

// Check snapshots help_requests and compares against earlier terminal
// observations. Returns a description of the first violation, if any.
func (g *TerminalGuard) Check(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	rows, err := pool.Query(ctx, `SELECT id, status FROM help_requests`)
	if err != nil {
		return "", fmt.Errorf("terminal guard: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return "", fmt.Errorf("terminal guard scan: %w", err)
		}
		if prev, ok := g.terminal[id]; ok && prev != status {
			return fmt.Sprintf("request %s regressed from %s to %s", id, prev, status), nil
		}
		if status == "resolved" || status == "cancelled" {
			g.terminal[id] = status
		}
	}
	return "", rows.Err()
}
