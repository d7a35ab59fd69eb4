package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/auth"
	"github.com/vovakirdan/ephemeral-chat/internal/store"
)

const (
	grantPassword     = "password"
	grantRefreshToken = "refresh_token"
)

// APIHandlers provides HTTP handlers for the auth endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// SignUpRequest represents the sign-up request body.
type SignUpRequest struct {
	Email    string       `json:"email" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Data     UserMetadata `json:"data"`
}

// TokenRequest carries either credentials or a refresh token, depending on grant_type.
type TokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// UserMetadata is the free-form profile attached to a user.
type UserMetadata struct {
	Username string `json:"username,omitempty"`
}

// UserResponse describes a user.
type UserResponse struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// TokenResponse is returned by a successful token grant.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		Metadata: UserMetadata{Username: u.Username},
	}
}

func toTokenResponse(pair *auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(pair.ExpiresAt).Seconds()),
		ExpiresAt:    pair.ExpiresAt.Unix(),
		RefreshToken: pair.RefreshToken,
		User:         toUserResponse(pair.User),
	}
}

// SignUp handles user registration.
// POST /auth/v1/signup
func (h *APIHandlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.SignUp(c.Request.Context(), req.Email, req.Password, req.Data.Username)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidPassword),
			errors.Is(err, auth.ErrInvalidUsername):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user registered successfully")
	c.JSON(http.StatusOK, toUserResponse(user))
}

// Token issues tokens for grant_type=password or grant_type=refresh_token.
// POST /auth/v1/token
func (h *APIHandlers) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var (
		pair *auth.TokenPair
		err  error
	)
	switch grant := c.Query("grant_type"); grant {
	case grantPassword:
		pair, err = h.authService.SignIn(c.Request.Context(), req.Email, req.Password)
	case grantRefreshToken:
		pair, err = h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported grant_type"})
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: auth.ErrInvalidRefreshToken.Error()})
		default:
			h.log.Error().Err(err).Msg("failed to issue token")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, toTokenResponse(pair))
}

// Logout acknowledges a sign-out. Tokens are stateless and simply expire.
// POST /auth/v1/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	h.log.Info().Str("user_id", c.GetString(ContextKeyUserID)).Msg("user signed out")
	c.Status(http.StatusNoContent)
}

// User returns the caller's profile.
// GET /auth/v1/user
func (h *APIHandlers) User(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), c.GetString(ContextKeyUserID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
