package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"skillsync/identity"
	"skillsync/request"
	"skillsync/settle"
)

// RequestHandler exposes the help-request directory and the match
// transitions, settlement included.
type RequestHandler struct {
	requests   *request.Service
	settlement *settle.Service
	bus        request.Subscriber
}

func NewRequestHandler(requests *request.Service, settlement *settle.Service, bus request.Subscriber) *RequestHandler {
	return &RequestHandler{requests: requests, settlement: settlement, bus: bus}
}

func (h *RequestHandler) Create(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.requests.Create(c.Request.Context(), request.CreateParams{
		RequesterID: authUserID(c),
		Description: body.Description,
		LanguageTag: body.LanguageTag,
		BountyCents: dollarsToCents(body.Bounty),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(created))
}

func (h *RequestHandler) ListPending(c *gin.Context) {
	list, err := h.requests.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponses(list))
}

// History returns the caller's terminal requests, newest first. Mentors
// see sessions they served; developers see requests they raised.
func (h *RequestHandler) History(c *gin.Context) {
	limit := request.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	list, err := h.requests.History(c.Request.Context(), authUserID(c), partyFor(authRole(c)), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponses(list))
}

// Live returns the caller's single pending or active request, if any.
func (h *RequestHandler) Live(c *gin.Context) {
	live, err := h.requests.LiveForParty(c.Request.Context(), authUserID(c), partyFor(authRole(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	if live == nil {
		c.JSON(http.StatusOK, gin.H{"request": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": toRequestResponse(*live)})
}

// Accept claims a pending request for the calling mentor. Developers
// cannot serve requests, their own included.
func (h *RequestHandler) Accept(c *gin.Context) {
	if authRole(c) != identity.RoleMentor {
		writeError(c, request.ErrForbidden)
		return
	}

	accepted, err := h.requests.Accept(c.Request.Context(), c.Param("id"), authUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(accepted))
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	cancelled, err := h.requests.Cancel(c.Request.Context(), c.Param("id"), authUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(cancelled))
}

func (h *RequestHandler) Abort(c *gin.Context) {
	aborted, err := h.requests.Abort(c.Request.Context(), c.Param("id"), authUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(aborted))
}

func (h *RequestHandler) Resolve(c *gin.Context) {
	receipt, err := h.settlement.Resolve(c.Request.Context(), c.Param("id"), authUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReceiptResponse(receipt))
}

// StreamPending delivers the pending feed over SSE: a snapshot on
// connect, then a fresh snapshot after every directory change.
func (h *RequestHandler) StreamPending(c *gin.Context) {
	ctx := c.Request.Context()

	snapshots, stop, err := h.requests.WatchPending(ctx, h.bus)
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
		case snap, open := <-snapshots:
			if !open {
				return false
			}
			if snap.Err != nil {
				return false
			}
			c.SSEvent("pending", toRequestResponses(snap.Value))
			return true
		}
	})
}

func partyFor(role identity.Role) request.Party {
	if role == identity.RoleMentor {
		return request.PartyMentor
	}
	return request.PartyRequester
}
