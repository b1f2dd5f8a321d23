package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/resumehub/resumehub/internal/shared"
)

const maxIDTokenBytes = 16 << 10

// HandlerConfig carries the knobs the handler needs from app config.
type HandlerConfig struct {
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	cfg       HandlerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		cfg:       cfg,
	}
}

// MountRoutes registers auth routes on the provided router. Credential
// endpoints share a per-IP rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.cfg.LoginRateLimit > 0 && h.cfg.LoginRateWindow > 0 {
			r.Use(httprate.LimitByIP(h.cfg.LoginRateLimit, h.cfg.LoginRateWindow))
		}
		r.Post("/signup", h.handleSignup)
		r.Post("/login", h.handleLogin)
		r.Post("/google", h.handleGoogle)
	})
	r.Post("/logout", h.handleLogout)
	r.Get("/validate", h.handleValidate)
	r.Get("/user", h.handleCurrentUser)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid signup fields")
		return
	}

	resp, err := h.service.Signup(r.Context(), req)
	switch {
	case err == nil:
		shared.WriteJSON(w, http.StatusCreated, resp)
	case errors.Is(err, shared.ErrDuplicateEmail):
		shared.WriteError(w, http.StatusConflict, "email already in use")
	default:
		h.logger.Error("signup", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, "signup failed")
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid login fields")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	switch {
	case err == nil:
		shared.WriteJSON(w, http.StatusOK, resp)
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInvalidCredentials):
		// One signal for both kinds, so responses cannot enumerate accounts.
		shared.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger.Error("login", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, "login failed")
	}
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIDTokenBytes))
	if err != nil || len(body) == 0 {
		shared.WriteError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	resp, err := h.service.LoginWithGoogle(r.Context(), string(body))
	if err != nil {
		if !errors.Is(err, shared.ErrTokenVerification) {
			h.logger.Error("google login", slog.Any("error", err))
		}
		shared.WriteError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	presented := r.Header.Get("Authorization")
	if err := h.service.Logout(r.Context(), presented); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	valid, err := h.service.IsValidToken(r.Context(), raw)
	if err != nil {
		h.logger.Error("validate token", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, "validation failed")
		return
	}
	shared.WriteJSON(w, http.StatusOK, valid)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		shared.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	shared.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
