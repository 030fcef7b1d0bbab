package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/metrics"
	"github.com/redmonkez12/usergate/internal/user"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate checks the registration form.
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(1, 100), is.Email),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterResult holds only the token; no user data is returned on registration.
type RegisterResult struct {
	Token string `json:"token"`
}

// LoginResult pairs a fresh token with the authenticated user.
type LoginResult struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// Status is the outcome of CheckStatus.
type Status int

const (
	StatusInvalid Status = iota
	StatusValid
)

func (s Status) String() string {
	if s == StatusValid {
		return "valid"
	}
	return "invalid"
}

// Service handles authentication business logic
type Service struct {
	users  UserRepository
	tokens TokenIssuer
	hasher PasswordHasher
	logger *logging.Logger
	now    func() time.Time
}

func NewService(users UserRepository, tokens TokenIssuer, hasher PasswordHasher, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for createdAt and lastLoginAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates an account and returns a token for it. The token is
// produced before the row is written and dropped if the write fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := in.Validate(); err != nil {
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeInvalidInput).Inc()
		return nil, newValidationError(err)
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeAlreadyRegistered).Inc()
		return nil, ErrAlreadyRegistered
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	newUser := &user.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLoginAt:  now,
	}

	token, err := s.tokens.Issue(newUser)
	if err != nil {
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.users.Insert(ctx, newUser); err != nil {
		// A concurrent registration can win between the check and the insert.
		if errors.Is(err, user.ErrDuplicateEmail) {
			metrics.RegisterTotal.WithLabelValues(metrics.OutcomeAlreadyRegistered).Inc()
			return nil, ErrAlreadyRegistered
		}
		metrics.RegisterTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.RegisterTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "user registered", "user_id", newUser.ID)

	return &RegisterResult{Token: token}, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(password, existing.PasswordHash) {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, ErrInvalidCredentials
	}

	if !existing.Active() {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeAccountUnavailable).Inc()
		s.logger.WarnContext(ctx, "login refused for unavailable account", "user_id", existing.ID)
		return nil, ErrAccountUnavailable
	}

	updated := *existing
	updated.LastLoginAt = s.now().UTC()

	token, err := s.tokens.Issue(&updated)
	if err != nil {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	// The write only lands while the account is still active, so a block or
	// delete that raced this login wins.
	if err := s.users.TouchLastLogin(ctx, updated.ID, updated.LastLoginAt); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.LoginTotal.WithLabelValues(metrics.OutcomeAccountUnavailable).Inc()
			s.logger.WarnContext(ctx, "login refused for unavailable account", "user_id", updated.ID)
			return nil, ErrAccountUnavailable
		}
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	metrics.LoginTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "user logged in", "user_id", updated.ID)

	return &LoginResult{Token: token, User: &updated}, nil
}

// CheckStatus reports whether the account exists and carries neither flag.
// It does not look at any token.
func (s *Service) CheckStatus(ctx context.Context, userID uuid.UUID) (Status, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return StatusInvalid, nil
		}
		return StatusInvalid, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.Active() {
		return StatusInvalid, nil
	}

	return StatusValid, nil
}
