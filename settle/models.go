package settle

import "time"

// Balances are the locked wallet rows read inside the settlement
// transaction.
type Balances struct {
	RequesterCents int64
	MentorCents    int64
}

// ApplyParams enumerates the writes executed inside a single transaction.
type ApplyParams struct {
	RequestID   string
	RequesterID string
	MentorID    string
	BountyCents int64
}

// Receipt reports the committed outcome of a settlement.
type Receipt struct {
	RequestID             string
	BountyCents           int64
	RequesterBalanceCents int64
	MentorBalanceCents    int64
	ResolvedAt            time.Time
}
