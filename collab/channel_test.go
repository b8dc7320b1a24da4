package collab

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testSessionID(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("itest-%s-%d", t.Name(), time.Now().UnixNano())
}

func TestBufferRoundTrip(t *testing.T) {
	client := redisClient(t)
	ch := NewChannel(client, nil)
	sessionID := testSessionID(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Cleanup(func() {
		client.Del(context.Background(), bufferKey(sessionID), chatKey(sessionID))
	})

	out, stop, err := ch.WatchBuffer(ctx, sessionID)
	if err != nil {
		t.Fatalf("watch buffer: %v", err)
	}
	defer stop()

	// An untouched session has no initial value; the first delivery is
	// the first write.
	if err := ch.WriteBuffer(ctx, sessionID, "func main() {}"); err != nil {
		t.Fatalf("write buffer: %v", err)
	}
	if got := recv(t, out); got != "func main() {}" {
		t.Fatalf("expected first write, got %q", got)
	}

	// Last write wins: a second wholesale write replaces the content.
	if err := ch.WriteBuffer(ctx, sessionID, "func main() { fmt.Println() }"); err != nil {
		t.Fatalf("write buffer: %v", err)
	}
	if got := recv(t, out); got != "func main() { fmt.Println() }" {
		t.Fatalf("expected second write, got %q", got)
	}
}

func TestChatOrderingAndDedup(t *testing.T) {
	client := redisClient(t)
	ch := NewChannel(client, nil)
	sessionID := testSessionID(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Cleanup(func() {
		client.Del(context.Background(), bufferKey(sessionID), chatKey(sessionID))
	})

	first, err := ch.AppendChat(ctx, sessionID, "dev-1", "developer", "hello")
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	second, err := ch.AppendChat(ctx, sessionID, "mentor-1", "mentor", "hi, show me the panic")
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if first.ID == "" || second.ID == "" {
		t.Fatal("expected server-assigned message ids")
	}
	if first.ID >= second.ID {
		t.Fatalf("expected strictly increasing stream ids, got %s then %s", first.ID, second.ID)
	}

	log, err := ch.ChatLog(ctx, sessionID)
	if err != nil {
		t.Fatalf("chat log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(log))
	}
	if log[0].Text != "hello" || log[1].Text != "hi, show me the panic" {
		t.Fatalf("unexpected ordering: %q then %q", log[0].Text, log[1].Text)
	}
	if log[0].SenderID != "dev-1" || log[0].Role != "developer" {
		t.Fatalf("unexpected sender metadata: %+v", log[0])
	}
	if log[0].SentAt.IsZero() {
		t.Fatal("expected sent_at to round-trip")
	}

	// Replaying the snapshot keyed by stream id drops duplicates.
	seen := map[string]bool{}
	for _, msg := range append(log, log...) {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 unique ids after replay, got %d", len(seen))
	}
}

func TestWatchChatDeliversSnapshots(t *testing.T) {
	client := redisClient(t)
	ch := NewChannel(client, nil)
	sessionID := testSessionID(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Cleanup(func() {
		client.Del(context.Background(), bufferKey(sessionID), chatKey(sessionID))
	})

	out, stop, err := ch.WatchChat(ctx, sessionID)
	if err != nil {
		t.Fatalf("watch chat: %v", err)
	}
	defer stop()

	if initial := recv(t, out); len(initial) != 0 {
		t.Fatalf("expected empty initial log, got %d messages", len(initial))
	}

	if _, err := ch.AppendChat(ctx, sessionID, "dev-1", "developer", "anyone there?"); err != nil {
		t.Fatalf("append: %v", err)
	}

	next := recv(t, out)
	if len(next) != 1 || next[0].Text != "anyone there?" {
		t.Fatalf("expected snapshot with the appended message, got %+v", next)
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
		var zero T
		return zero
	}
}
