package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/metrics"
	"github.com/redmonkez12/usergate/internal/user"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID  uuid.UUID
	Email   string
	TokenID string
}

// Gate admits a request only while the token's user exists and is neither
// blocked nor deleted. The store is read on every call.
type Gate struct {
	tokens TokenValidator
	users  UserFinder
	logger *logging.Logger
}

func NewGate(tokens TokenValidator, users UserFinder, logger *logging.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, logger: logger}
}

// Authorize validates token and then checks the account it names.
func (g *Gate) Authorize(ctx context.Context, token string) (*Identity, error) {
	claims, ok := g.tokens.Validate(token)
	if !ok {
		metrics.GateDecisionsTotal.WithLabelValues(metrics.OutcomeUnauthenticated).Inc()
		return nil, ErrUnauthenticated
	}

	return g.Check(ctx, claims)
}

// Check applies the account rules to already validated claims.
func (g *Gate) Check(ctx context.Context, claims *Claims) (*Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues(metrics.OutcomeUnauthenticated).Inc()
		return nil, ErrUnauthenticated
	}

	u, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			g.deny(ctx, userID, "user not found")
			return nil, ErrForbidden
		}
		metrics.GateDecisionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to load user for gate: %w", err)
	}

	if !u.Active() {
		g.deny(ctx, userID, "user blocked or deleted")
		return nil, ErrForbidden
	}

	metrics.GateDecisionsTotal.WithLabelValues(metrics.OutcomeAllowed).Inc()
	return &Identity{UserID: u.ID, Email: claims.Email, TokenID: claims.ID}, nil
}

func (g *Gate) deny(ctx context.Context, userID uuid.UUID, reason string) {
	metrics.GateDecisionsTotal.WithLabelValues(metrics.OutcomeForbidden).Inc()
	g.logger.WarnContext(ctx, "gate denied request", "user_id", userID, "reason", reason)
}
