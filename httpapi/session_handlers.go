package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/collab"
	"skillsync/request"
	"skillsync/watcher"
)

// SessionHandler exposes the collaboration channel of an active session
// and the caller's session watch stream.
type SessionHandler struct {
	requests *request.Service
	channel  *collab.Channel
	watch    *watcher.Watcher
	bus      request.Subscriber
}

func NewSessionHandler(requests *request.Service, channel *collab.Channel, watch *watcher.Watcher, bus request.Subscriber) *SessionHandler {
	return &SessionHandler{requests: requests, channel: channel, watch: watch, bus: bus}
}

// member loads the session's request and verifies the caller is one of
// the two bound parties.
func (h *SessionHandler) member(c *gin.Context) (request.HelpRequest, bool) {
	req, err := h.requests.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return request.HelpRequest{}, false
	}

	caller := authUserID(c)
	if req.RequesterID != caller && (req.MentorID == nil || *req.MentorID != caller) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return request.HelpRequest{}, false
	}
	return req, true
}

func (h *SessionHandler) WriteBuffer(c *gin.Context) {
	req, ok := h.member(c)
	if !ok {
		return
	}
	if req.Status != request.StatusActive {
		writeError(c, request.ErrInvalidTransition)
		return
	}

	var body writeBufferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.channel.WriteBuffer(c.Request.Context(), req.ID, body.Content); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) AppendChat(c *gin.Context) {
	req, ok := h.member(c)
	if !ok {
		return
	}
	if req.Status != request.StatusActive {
		writeError(c, request.ErrInvalidTransition)
		return
	}

	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.channel.AppendChat(c.Request.Context(), req.ID, authUserID(c), string(authRole(c)), body.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

func (h *SessionHandler) ChatLog(c *gin.Context) {
	req, ok := h.member(c)
	if !ok {
		return
	}

	log, err := h.channel.ChatLog(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(log))
}

// StreamBuffer delivers buffer contents over SSE: the current value
// immediately, then every subsequent write.
func (h *SessionHandler) StreamBuffer(c *gin.Context) {
	req, ok := h.member(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	updates, stop, err := h.channel.WatchBuffer(ctx, req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stop()

	sseHeaders(c)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case content, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("buffer", gin.H{"content": content})
			return true
		}
	})
}

// StreamChat delivers full chat-log snapshots over SSE. Consumers dedup
// by message id across reconnects.
func (h *SessionHandler) StreamChat(c *gin.Context) {
	req, ok := h.member(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	snapshots, stop, err := h.channel.WatchChat(ctx, req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stop()

	sseHeaders(c)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case log, open := <-snapshots:
			if !open {
				return false
			}
			c.SSEvent("chat", toMessageResponses(log))
			return true
		}
	})
}

// StreamWatch tells the caller which session, if any, they should be
// in: the active session id, or empty when there is none.
func (h *SessionHandler) StreamWatch(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, stop, err := h.watch.Watch(ctx, h.bus, authUserID(c), partyFor(authRole(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	defer stop()

	sseHeaders(c)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, open := <-sessions:
			if !open {
				return false
			}
			if snap.Err != nil {
				// Tell the client the watch degraded so it can reconnect
				// rather than trust a stale view.
				c.SSEvent("error", gin.H{"error": "session watch refresh failed"})
				return false
			}
			c.SSEvent("session", gin.H{"session_id": snap.Value})
			return true
		}
	})
}

func sseHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}
