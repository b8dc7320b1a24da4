package httpapi

import (
	"math"
	"time"

	"skillsync/collab"
	"skillsync/identity"
	"skillsync/request"
	"skillsync/settle"
)

// Wallet amounts cross the wire as decimal dollars; everything past the
// edge is integer cents.
func dollarsToCents(d float64) int64 { return int64(math.Round(d * 100)) }
func centsToDollars(c int64) float64 { return float64(c) / 100 }

type registerBody struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=255"`
	Role     string `json:"role" binding:"omitempty,oneof=developer mentor"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=255"`
}

type topUpBody struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type createRequestBody struct {
	Description string  `json:"description" binding:"required,max=4000"`
	LanguageTag string  `json:"language_tag" binding:"max=64"`
	Bounty      float64 `json:"bounty" binding:"gte=0"`
}

type writeBufferBody struct {
	Content string `json:"content"`
}

type chatBody struct {
	Text string `json:"text" binding:"required,max=4000"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	WalletBalance float64   `json:"wallet_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u *identity.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Role:          string(u.Role),
		WalletBalance: centsToDollars(u.WalletBalanceCents),
		CreatedAt:     u.CreatedAt,
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type requestResponse struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	MentorID    *string    `json:"mentor_id,omitempty"`
	Description string     `json:"description"`
	LanguageTag string     `json:"language_tag,omitempty"`
	Bounty      float64    `json:"bounty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toRequestResponse(r request.HelpRequest) requestResponse {
	return requestResponse{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		MentorID:    r.MentorID,
		Description: r.Description,
		LanguageTag: r.LanguageTag,
		Bounty:      centsToDollars(r.BountyCents),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		AcceptedAt:  r.AcceptedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

func toRequestResponses(list []request.HelpRequest) []requestResponse {
	out := make([]requestResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toRequestResponse(r))
	}
	return out
}

type receiptResponse struct {
	RequestID        string    `json:"request_id"`
	Bounty           float64   `json:"bounty"`
	RequesterBalance float64   `json:"requester_balance"`
	MentorBalance    float64   `json:"mentor_balance"`
	ResolvedAt       time.Time `json:"resolved_at"`
}

func toReceiptResponse(r settle.Receipt) receiptResponse {
	return receiptResponse{
		RequestID:        r.RequestID,
		Bounty:           centsToDollars(r.BountyCents),
		RequesterBalance: centsToDollars(r.RequesterBalanceCents),
		MentorBalance:    centsToDollars(r.MentorBalanceCents),
		ResolvedAt:       r.ResolvedAt,
	}
}

type messageResponse struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

func toMessageResponse(m collab.Message) messageResponse {
	return messageResponse{
		ID:       m.ID,
		SenderID: m.SenderID,
		Role:     m.Role,
		Text:     m.Text,
		SentAt:   m.SentAt,
	}
}

func toMessageResponses(list []collab.Message) []messageResponse {
	out := make([]messageResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMessageResponse(m))
	}
	return out
}
