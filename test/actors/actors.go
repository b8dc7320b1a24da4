package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"skillsync/request"
	"skillsync/settle"
)

// Actors drive the real repositories and services, not raw SQL, so the
// stress run exercises the same code paths production traffic does.
// Domain rejections (lost races, duplicate live requests, insufficient
// funds) are expected under contention; connection failures injected by
// chaos are retried. Only context cancellation ends an actor.

// Developer loops the requester lifecycle: raise a request, sometimes
// withdraw it, settle or abort once a mentor attaches.
func Developer(ctx context.Context, repo request.Repository, settler *settle.Service, developerID string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		live, err := repo.LiveForParty(ctx, developerID, request.PartyRequester)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sleepJitter(50)
			continue
		}

		switch {
		case live == nil:
			_, err = repo.Create(ctx, request.HelpRequest{
				RequesterID: developerID,
				Description: fmt.Sprintf("stress question %d", i),
				BountyCents: int64(rand.Intn(3000)),
				Status:      request.StatusPending,
			})
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		case live.Status == request.StatusPending:
			if rand.Intn(4) == 0 {
				_, _ = repo.Cancel(ctx, live.ID, developerID)
			}
		case live.Status == request.StatusActive:
			if rand.Intn(8) == 0 {
				_, _ = repo.Abort(ctx, live.ID, developerID)
			} else {
				_, err = settler.Resolve(ctx, live.ID, developerID)
				if errors.Is(err, settle.ErrInsufficientFunds) {
					// Wallet drained; abort so the slot frees up.
					_, _ = repo.Abort(ctx, live.ID, developerID)
				}
			}
		}

		sleepJitter(20)
	}
}

// MentorRacer races other mentors for pending requests. Losing with
// ErrAlreadyClaimed is the expected outcome most of the time.
func MentorRacer(ctx context.Context, repo request.Repository, mentorID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		pending, err := repo.ListPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sleepJitter(50)
			continue
		}
		if len(pending) == 0 {
			sleepJitter(30)
			continue
		}

		target := pending[rand.Intn(len(pending))]
		_, err = repo.Accept(ctx, target.ID, mentorID)
		switch {
		case err == nil:
		case errors.Is(err, request.ErrAlreadyClaimed),
			errors.Is(err, request.ErrInvalidTransition),
			errors.Is(err, request.ErrForbidden),
			errors.Is(err, request.ErrNotFound):
			// lost the race or the request moved on
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		sleepJitter(25)
	}
}

// Ghost fires operations with made-up ids and mismatched callers to
// probe the guards: none of these may ever succeed.
func Ghost(ctx context.Context, repo request.Repository, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		bogus := fmt.Sprintf("%08x-dead-4bee-8f00-%012x", rand.Uint32(), rand.Int63n(1<<48))
		if _, err := repo.Accept(ctx, bogus, bogus); err == nil {
			return fmt.Errorf("ghost accept on %s succeeded", bogus)
		}
		if _, err := repo.Cancel(ctx, bogus, bogus); err == nil {
			return fmt.Errorf("ghost cancel on %s succeeded", bogus)
		}

		sleepJitter(120)
	}
}

func sleepJitter(baseMillis int) {
	time.Sleep(time.Duration(baseMillis+rand.Intn(baseMillis+1)) * time.Millisecond)
}
