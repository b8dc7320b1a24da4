package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionTTL bounds how long session state outlives its last write. The
// contents are advisory; durability ends with the active session.
const sessionTTL = 24 * time.Hour

// Message is one entry of a session's append-only chat log. ID is the
// server-assigned stream id: unique, ordered, and the key consumers use
// to ignore duplicate deliveries after a reconnect.
type Message struct {
	ID       string
	SenderID string
	Role     string
	Text     string
	SentAt   time.Time
}

// Channel synchronizes the two per-session sub-streams: a single shared
// text buffer (last write wins, no merging) and an ordered chat log.
type Channel struct {
	client *redis.Client
	logger *slog.Logger
}

func NewChannel(client *redis.Client, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		client: client,
		logger: logger,
	}
}

func bufferKey(sessionID string) string   { return "session:" + sessionID + ":buffer" }
func bufferTopic(sessionID string) string { return "session:" + sessionID + ":buffer:events" }
func chatKey(sessionID string) string     { return "session:" + sessionID + ":chat" }
func chatTopic(sessionID string) string   { return "session:" + sessionID + ":chat:events" }

// WriteBuffer overwrites the shared buffer wholesale and fans the new
// content out to every subscriber, the writer included. Concurrent
// writers clobber each other; last write observed wins.
func (c *Channel) WriteBuffer(ctx context.Context, sessionID, content string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, bufferKey(sessionID), content, sessionTTL)
	pipe.Publish(ctx, bufferTopic(sessionID), content)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("collab: write buffer: %w", err)
	}
	return nil
}

// WatchBuffer delivers the current buffer value (when one exists) and
// then every subsequent write. Consumers that echo their own writes back
// must suppress re-applying them with a local-origin flag.
func (c *Channel) WatchBuffer(ctx context.Context, sessionID string) (<-chan string, func(), error) {
	sub := c.client.Subscribe(ctx, bufferTopic(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("collab: watch buffer: %w", err)
	}

	out := make(chan string, 8)
	go func() {
		defer close(out)

		// Initial value, fetched after the subscription is live so no
		// write can slip between the read and the first event.
		current, err := c.client.Get(ctx, bufferKey(sessionID)).Result()
		if err == nil {
			if !send(ctx, out, current) {
				return
			}
		} else if err != redis.Nil {
			c.logger.WarnContext(ctx, "read buffer", "session_id", sessionID, "error", err)
		}

		for msg := range sub.Channel() {
			if !send(ctx, out, msg.Payload) {
				return
			}
		}
	}()

	stop := func() { _ = sub.Close() }
	return out, stop, nil
}

// AppendChat adds one entry to the session's ordered log. Ordering is
// server-assigned by the stream; delivery preserves it for every
// subscriber.
func (c *Channel) AppendChat(ctx context.Context, sessionID, senderID, role, text string) (Message, error) {
	if text == "" {
		return Message{}, fmt.Errorf("collab: empty chat message")
	}

	sentAt := time.Now().UTC()
	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: chatKey(sessionID),
		Values: map[string]any{
			"sender_id": senderID,
			"role":      role,
			"text":      text,
			"sent_at":   sentAt.UnixMilli(),
		},
	}).Result()
	if err != nil {
		return Message{}, fmt.Errorf("collab: append chat: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Expire(ctx, chatKey(sessionID), sessionTTL)
	pipe.Publish(ctx, chatTopic(sessionID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "chat notify", "session_id", sessionID, "error", err)
	}

	return Message{
		ID:       id,
		SenderID: senderID,
		Role:     role,
		Text:     text,
		SentAt:   sentAt,
	}, nil
}

// ChatLog returns the full ordered log for the session.
func (c *Channel) ChatLog(ctx context.Context, sessionID string) ([]Message, error) {
	entries, err := c.client.XRange(ctx, chatKey(sessionID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("collab: read chat log: %w", err)
	}

	log := make([]Message, 0, len(entries))
	for _, e := range entries {
		log = append(log, messageFromEntry(e))
	}
	return log, nil
}

// WatchChat delivers the full ordered log immediately and again after
// every append. Entries repeat across snapshots; consumers deduplicate
// by Message.ID.
func (c *Channel) WatchChat(ctx context.Context, sessionID string) (<-chan []Message, func(), error) {
	sub := c.client.Subscribe(ctx, chatTopic(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("collab: watch chat: %w", err)
	}

	out := make(chan []Message, 1)
	go func() {
		defer close(out)
		emit := func() bool {
			log, err := c.ChatLog(ctx, sessionID)
			if err != nil {
				c.logger.WarnContext(ctx, "chat snapshot", "session_id", sessionID, "error", err)
				return true
			}
			return send(ctx, out, log)
		}
		if !emit() {
			return
		}
		for range sub.Channel() {
			if !emit() {
				return
			}
		}
	}()

	stop := func() { _ = sub.Close() }
	return out, stop, nil
}

func messageFromEntry(e redis.XMessage) Message {
	msg := Message{ID: e.ID}
	if v, ok := e.Values["sender_id"].(string); ok {
		msg.SenderID = v
	}
	if v, ok := e.Values["role"].(string); ok {
		msg.Role = v
	}
	if v, ok := e.Values["text"].(string); ok {
		msg.Text = v
	}
	if v, ok := e.Values["sent_at"].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.SentAt = time.UnixMilli(ms).UTC()
		}
	}
	return msg
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- v:
		return true
	}
}
