package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/okunev/blogauth/internal/apperrors"
	"github.com/okunev/blogauth/internal/handlers/render"
	"github.com/okunev/blogauth/internal/logger"
	"github.com/okunev/blogauth/internal/metrics"
	"github.com/okunev/blogauth/internal/models"
	"github.com/okunev/blogauth/internal/service/auth"
)

// Auth service as the handlers see it
type AuthService interface {
	// Register user; email conflicts win over username conflicts.
	// Has to return apperrors.ConflictError when a field is taken
	Register(ctx context.Context, username string, email string, password string) (auth.Result, error)

	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials on unknown user or wrong password
	Login(ctx context.Context, username string, password string) (auth.Result, error)

	// Logout deletes the session for the presented refresh token, idempotent
	Logout(ctx context.Context, refreshToken string) error

	// Refresh rotates the session to a new token pair
	// Has to return apperrors.ErrInvalidToken or apperrors.ErrSessionNotFound
	// when the presented token must not be honored
	Refresh(ctx context.Context, refreshToken string) (auth.Result, error)

	// Resolve the access token from the request to a user
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)

	// Token delivery on the response and refresh read-back from the request
	SetTokenPair(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)
	ReadRefreshToken(r *http.Request) (string, error)
}

// AuthResponse is the shape every auth endpoint answers with
type AuthResponse struct {
	User          *models.PublicUser `json:"user"`
	Authenticated bool               `json:"authenticated"`
}

type AuthHandler struct {
	auth    AuthService
	logger  logger.Logger
	metrics *metrics.Metrics
}

func NewAuth(auth AuthService, l logger.Logger, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{auth: auth, logger: l, metrics: m}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
	mux.HandleFunc("POST /refresh", h.refresh)

	return mux
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Register(r.Context(), data.Username, data.Email, data.Password)
	if err != nil {
		var conflict *apperrors.ConflictError
		switch {
		case errors.As(err, &conflict):
			h.metrics.Observe("register", metrics.ResultConflict)
			render.ServiceError(w, conflict.Error(), http.StatusConflict)
		default:
			h.metrics.Observe("register", metrics.ResultError)
			h.logger.Error("registration failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Observe("register", metrics.ResultOK)
	h.auth.SetTokenPair(w, result.Pair)
	render.JSONWithStatus(w, AuthResponse{User: &result.User, Authenticated: true}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			// One message for unknown username and wrong password:
			// the caller must not learn which check failed
			h.metrics.Observe("login", metrics.ResultUnauthorized)
			render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
		default:
			h.metrics.Observe("login", metrics.ResultError)
			h.logger.Error("login failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Observe("login", metrics.ResultOK)
	h.auth.SetTokenPair(w, result.Pair)
	render.JSON(w, AuthResponse{User: &result.User, Authenticated: true})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	// Missing cookie is fine: logout is idempotent and always answers
	// unauthenticated
	refresh, _ := h.auth.ReadRefreshToken(r)

	// Cookies are cleared whatever happens next
	h.auth.ClearTokens(w)

	if err := h.auth.Logout(r.Context(), refresh); err != nil {
		h.metrics.Observe("logout", metrics.ResultError)
		h.logger.Error("logout failed", "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.Observe("logout", metrics.ResultOK)
	render.JSON(w, AuthResponse{User: nil, Authenticated: false})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	refresh, err := h.auth.ReadRefreshToken(r)
	if err != nil {
		h.metrics.Observe("refresh", metrics.ResultUnauthorized)
		render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	result, err := h.auth.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidToken), errors.Is(err, apperrors.ErrSessionNotFound):
			// Forged, expired, superseded or revoked: one answer for all
			h.metrics.Observe("refresh", metrics.ResultUnauthorized)
			h.logger.Debug("refresh rejected", "error", err.Error())
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			h.metrics.Observe("refresh", metrics.ResultError)
			h.logger.Error("refresh failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Observe("refresh", metrics.ResultOK)
	h.auth.SetTokenPair(w, result.Pair)
	render.JSON(w, AuthResponse{User: &result.User, Authenticated: true})
}
