package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/httputil"
	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/ratelimit"
)

// Rate limit purposes.
const (
	purposeRegister = "register"
	purposeLogin    = "login"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
	IsBlocked   bool      `json:"is_blocked"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an account and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterInput true "Registration form"
// @Success      200 {object} RegisterResult
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limited(w, r, logger, ip, purposeRegister) {
		return
	}

	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.record(r, logger, ip, purposeRegister)

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			logger.Warn("registration failed: validation error", "error", err.Error())
			httputil.RespondValidationError(w, "validation failed", vErr.Fields)
		case errors.Is(err, ErrAlreadyRegistered):
			logger.Warn("registration failed: email already exists")
			httputil.RespondErrorWithCode(w, "email is already registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, result, http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "User is blocked or deleted"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limited(w, r, logger, ip, purposeLogin) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.record(r, logger, ip, purposeLogin)

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountUnavailable):
			logger.Warn("login failed: account unavailable")
			httputil.RespondErrorWithCode(w, "user is blocked or deleted", httputil.CodeAccountUnavailable, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	u := result.User
	httputil.RespondJSON(w, LoginResponse{
		Token: result.Token,
		User: UserResponse{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.Name,
			CreatedAt:   u.CreatedAt,
			LastLoginAt: u.LastLoginAt,
			IsBlocked:   u.IsBlocked,
		},
	}, http.StatusOK)
}

// CheckStatus reports whether a user account is still usable
// @Summary      Check user status
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        userId query string true "User id"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Malformed user id"
// @Failure      401 {object} httputil.ErrorResponse "User is no longer valid"
// @Router       /users/check-status [get]
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "userId must be a valid UUID", httputil.CodeInvalidUserID, http.StatusBadRequest)
		return
	}

	status, err := h.service.CheckStatus(r.Context(), userID)
	if err != nil {
		logger.Error("status check failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to check user status", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if status != StatusValid {
		httputil.RespondErrorWithCode(w, ErrUserInvalid.Error(), httputil.CodeUserInvalid, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, httputil.MessageResponse{Message: "User is valid."}, http.StatusOK)
}

// limited writes a 429 and returns true when ip is over its window. Redis
// failures let the request through.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, logger *logging.Logger, ip, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	return false
}

func (h *Handler) record(r *http.Request, logger *logging.Logger, ip, purpose string) {
	if h.rateLimiter == nil {
		return
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
}

// getClientIP keys rate limits on the connection address. Behind a trusted
// proxy, middleware.RealIP has already rewritten RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
