package watcher

import (
	"context"
	"log/slog"

	"skillsync/request"
)

// Directory is the slice of the request service the watcher consumes.
type Directory interface {
	WatchParty(ctx context.Context, sub request.Subscriber, identityID string, party request.Party) (<-chan request.Watched[*request.HelpRequest], func(), error)
}

// Watcher derives, per identity, which single request (if any) is the
// identity's current active session.
type Watcher struct {
	dir    Directory
	logger *slog.Logger
}

func New(dir Directory, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:    dir,
		logger: logger,
	}
}

// Watch emits the identity's active session id, or "" when there is
// none. A session id is surfaced only once its status is verified
// active; a merely pending request never leaks to the consumer.
// Consecutive duplicates are suppressed, so each received value is a
// transition to attach or detach on. A failed refresh is forwarded as
// an emission with Err set; the consumer decides whether to detach or
// wait, and the next successful refresh resumes the value stream.
func (w *Watcher) Watch(ctx context.Context, sub request.Subscriber, identityID string, party request.Party) (<-chan request.Watched[string], func(), error) {
	in, stop, err := w.dir.WatchParty(ctx, sub, identityID, party)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan request.Watched[string], 1)
	go func() {
		defer close(out)
		started := false
		last := ""
		for snapshot := range in {
			if snapshot.Err != nil {
				w.logger.WarnContext(ctx, "session watch refresh failed",
					"identity_id", identityID, "error", snapshot.Err)
				select {
				case <-ctx.Done():
					return
				case out <- request.Watched[string]{Err: snapshot.Err}:
				}
				continue
			}

			id := ""
			if rec := snapshot.Value; rec != nil && rec.Status == request.StatusActive {
				id = rec.ID
			}
			if started && id == last {
				continue
			}
			started = true
			last = id

			select {
			case <-ctx.Done():
				return
			case out <- request.Watched[string]{Value: id}:
			}
		}
	}()

	return out, stop, nil
}
