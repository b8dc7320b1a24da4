package request

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Party selects which binding of a help request an identity is queried by.
type Party string

const (
	PartyRequester Party = "requester"
	PartyMentor    Party = "mentor"
)

// HelpRequest is the unit of work broadcast by a developer and claimed by
// a mentor. MentorID, AcceptedAt and ResolvedAt are unset until the
// corresponding transition happens; each is written exactly once.
type HelpRequest struct {
	ID          string
	RequesterID string
	MentorID    *string
	Description string
	LanguageTag string
	BountyCents int64
	Status      Status
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	ResolvedAt  *time.Time
}

// DefaultHistoryLimit caps history views when the caller does not choose one.
const DefaultHistoryLimit = 10
