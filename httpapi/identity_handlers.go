package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/identity"
)

// IdentityHandler exposes registration, login and wallet operations.
type IdentityHandler struct {
	identities *identity.Service
}

func NewIdentityHandler(identities *identity.Service) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

func (h *IdentityHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.identities.Register(ctx, identity.RegisterRequest{
		Email:    body.Email,
		Password: body.Password,
		Role:     identity.Role(body.Role),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *IdentityHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.identities.Login(ctx, identity.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token: result.Token,
		User:  toUserResponse(&result.User),
	})
}

func (h *IdentityHandler) Me(c *gin.Context) {
	user, err := h.identities.GetUserByID(c.Request.Context(), authUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *IdentityHandler) TopUp(c *gin.Context) {
	var body topUpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.identities.TopUp(c.Request.Context(), authUserID(c), dollarsToCents(body.Amount))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
