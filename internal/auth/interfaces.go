package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/user"
)

// UserRepository is the credential store used by the auth flows.
// *user.Repository satisfies it.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, u *user.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UserFinder is the read used by the account gate.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(u *user.User) (string, error)
}

// TokenValidator verifies access tokens. It never reports a reason.
type TokenValidator interface {
	Validate(token string) (*Claims, bool)
}

var (
	_ UserRepository = (*user.Repository)(nil)
	_ TokenIssuer    = (*JWTService)(nil)
	_ TokenValidator = (*JWTService)(nil)
)
