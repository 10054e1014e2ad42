package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/marmos91/relayfs/pkg/wsserver/auth"
	"github.com/marmos91/relayfs/pkg/wsserver/middleware"
)

// AuthHandler issues and refreshes the bearer token a client later presents
// at the WebSocket Establish handshake.
type AuthHandler struct {
	users userstore.UserStore
	jwt   *auth.Service
}

func NewAuthHandler(users userstore.UserStore, jwt *auth.Service) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	Username string             `json:"username"`
	UserType userstore.UserType `json:"user_type"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login: validates credentials against the
// user store and mints a fresh token pair, the first of which a client
// presents as UserCtx.Token at Establish.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		BadRequest(w, "username and password are required")
		return
	}

	user, err := h.users.GetByName(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			Unauthorized(w, "invalid username or password")
			return
		}
		InternalServerError(w, "authentication failed")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		Unauthorized(w, "invalid username or password")
		return
	}

	pair, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "failed to generate token")
		return
	}

	if err := h.users.TouchLastLogin(r.Context(), user.Username); err != nil {
		logger.WarnCtx(r.Context(), "failed to update last login time", logger.Username(user.Username), logger.Err(err))
	}

	WriteJSONOK(w, loginResponse(pair, user))
}

// Refresh handles POST /api/v1/auth/refresh: exchanges a valid refresh
// token for a fresh pair without re-checking the password.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		BadRequest(w, "refresh token is required")
		return
	}

	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "refresh token has expired")
			return
		}
		Unauthorized(w, "invalid refresh token")
		return
	}

	user, ok := h.getUserOrUnauthorized(w, r.Context(), claims.Username)
	if !ok {
		return
	}

	pair, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "failed to generate token")
		return
	}

	WriteJSONOK(w, loginResponse(pair, user))
}

// Me handles GET /api/v1/auth/me: returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "authentication required")
		return
	}
	user, ok := h.getUserOrUnauthorized(w, r.Context(), claims.Username)
	if !ok {
		return
	}
	WriteJSONOK(w, UserResponse{Username: user.Username, UserType: user.UserType})
}

func (h *AuthHandler) getUserOrUnauthorized(w http.ResponseWriter, ctx context.Context, username string) (*userstore.User, bool) {
	user, err := h.users.GetByName(ctx, username)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			Unauthorized(w, "user no longer exists")
			return nil, false
		}
		InternalServerError(w, "failed to look up user")
		return nil, false
	}
	return user, true
}

func loginResponse(pair *auth.TokenPair, user *userstore.User) LoginResponse {
	return LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		User:         UserResponse{Username: user.Username, UserType: user.UserType},
	}
}
