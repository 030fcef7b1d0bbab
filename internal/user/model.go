package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
	IsBlocked    bool      `json:"is_blocked"`
	IsDeleted    bool      `json:"-"`
}

// Active reports whether the account may be used. Either flag denies access.
func (u *User) Active() bool {
	return !u.IsBlocked && !u.IsDeleted
}

// Summary is the listing shape returned to administrators.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	LastLoginAt time.Time `json:"last_login_at"`
	IsBlocked   bool      `json:"is_blocked"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
		IsBlocked:   u.IsBlocked,
	}
}
