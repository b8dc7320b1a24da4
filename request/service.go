package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// TopicDirectory is published after every committed directory change so
// live views know to refresh their snapshots.
const TopicDirectory = "help_requests"

// Notifier fans a change signal out to directory subscribers.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
}

// Service exposes the help-request directory and the match transitions.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	idGen    func() string
}

type CreateParams struct {
	RequesterID string
	Description string
	LanguageTag string
	BountyCents int64
}

func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		idGen:    func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// Create broadcasts a new pending help request.
func (s *Service) Create(ctx context.Context, params CreateParams) (HelpRequest, error) {
	if params.RequesterID == "" {
		return HelpRequest{}, fmt.Errorf("%w: missing requester id", ErrInvalidInput)
	}
	if strings.TrimSpace(params.Description) == "" {
		return HelpRequest{}, fmt.Errorf("%w: description required", ErrInvalidInput)
	}
	if params.BountyCents < 0 {
		return HelpRequest{}, fmt.Errorf("%w: bounty must not be negative", ErrInvalidInput)
	}

	created, err := s.repo.Create(ctx, HelpRequest{
		ID:          s.idGen(),
		RequesterID: params.RequesterID,
		Description: params.Description,
		LanguageTag: params.LanguageTag,
		BountyCents: params.BountyCents,
		Status:      StatusPending,
	})
	if err != nil {
		return HelpRequest{}, err
	}

	s.notify(ctx)
	return created, nil
}

// Accept performs the exclusive pending -> active transition. A lost
// race surfaces as ErrAlreadyClaimed and must not be retried on this id.
func (s *Service) Accept(ctx context.Context, id, mentorID string) (HelpRequest, error) {
	if id == "" || mentorID == "" {
		return HelpRequest{}, fmt.Errorf("%w: missing request or mentor id", ErrInvalidInput)
	}

	accepted, err := s.repo.Accept(ctx, id, mentorID)
	if err != nil {
		return HelpRequest{}, err
	}

	s.notify(ctx)
	return accepted, nil
}

// Cancel withdraws a pending request. Requester only.
func (s *Service) Cancel(ctx context.Context, id, requesterID string) (HelpRequest, error) {
	cancelled, err := s.repo.Cancel(ctx, id, requesterID)
	if err != nil {
		return HelpRequest{}, err
	}

	s.notify(ctx)
	return cancelled, nil
}

// Abort ends an active session without settlement. Either bound party.
func (s *Service) Abort(ctx context.Context, id, callerID string) (HelpRequest, error) {
	aborted, err := s.repo.Abort(ctx, id, callerID)
	if err != nil {
		return HelpRequest{}, err
	}

	s.notify(ctx)
	return aborted, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (HelpRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPending(ctx context.Context) ([]HelpRequest, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) History(ctx context.Context, identityID string, party Party, limit int) ([]HelpRequest, error) {
	return s.repo.History(ctx, identityID, party, limit)
}

func (s *Service) LiveForParty(ctx context.Context, identityID string, party Party) (*HelpRequest, error) {
	return s.repo.LiveForParty(ctx, identityID, party)
}

// NotifyChanged publishes a directory refresh signal. Settlement commits
// outside this package call it so watchers observe the terminal state.
func (s *Service) NotifyChanged(ctx context.Context) {
	s.notify(ctx)
}

func (s *Service) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, TopicDirectory); err != nil {
		// Subscribers miss one refresh; the next change catches them up.
		s.logger.WarnContext(ctx, "directory notify failed", "error", err)
	}
}
