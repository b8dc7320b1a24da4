package request

import (
	"context"
)

// Subscriber delivers coalesced change signals for a topic. The returned
// stop function releases the subscription; the channel closes afterwards.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
}

// Watched bundles a snapshot with the subscription error state, so a
// broken refresh surfaces to the consumer instead of going stale silently.
type Watched[T any] struct {
	Value T
	Err   error
}

// WatchPending returns a live view of the pending feed: an immediate
// snapshot, then a fresh snapshot after every directory change. The
// returned stop function must be called to release the subscription.
func (s *Service) WatchPending(ctx context.Context, sub Subscriber) (<-chan Watched[[]HelpRequest], func(), error) {
	events, stop, err := sub.Subscribe(ctx, TopicDirectory)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Watched[[]HelpRequest], 1)
	go func() {
		defer close(out)
		emit := func() bool {
			snapshot, err := s.repo.ListPending(ctx)
			return send(ctx, out, Watched[[]HelpRequest]{Value: snapshot, Err: err})
		}
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out, stop, nil
}

// WatchParty returns a live view of the identity's single live request
// (nil when absent), refreshed on every directory change.
func (s *Service) WatchParty(ctx context.Context, sub Subscriber, identityID string, party Party) (<-chan Watched[*HelpRequest], func(), error) {
	events, stop, err := sub.Subscribe(ctx, TopicDirectory)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Watched[*HelpRequest], 1)
	go func() {
		defer close(out)
		emit := func() bool {
			rec, err := s.repo.LiveForParty(ctx, identityID, party)
			return send(ctx, out, Watched[*HelpRequest]{Value: rec, Err: err})
		}
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out, stop, nil
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- v:
		return true
	}
}
