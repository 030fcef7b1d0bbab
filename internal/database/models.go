package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the row model for the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Email        string    `bun:"email,notnull,unique"`
	Name         string    `bun:"name,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	LastLoginAt  time.Time `bun:"last_login_at,notnull"`
	IsBlocked    bool      `bun:"is_blocked,notnull,default:false"`
	IsDeleted    bool      `bun:"is_deleted,notnull,default:false"`
}
