package auth

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/redmonkez12/usergate/internal/database"
	"github.com/redmonkez12/usergate/internal/user"
)

// newSQLiteRepository returns the real bun repository over a migrated
// in-memory database.
func newSQLiteRepository(t *testing.T) *user.Repository {
	t.Helper()

	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(context.Background(), sqlDB, database.DialectSQLite))

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return user.NewRepository(db)
}

// memRepo is an in-memory credential store. The email check and insert
// happen under one lock, like a unique index.
type memRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*user.User
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[uuid.UUID]*user.User)}
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == user.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memRepo) Insert(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *memRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || !u.Active() {
		return user.ErrNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (r *memRepo) SetBlocked(_ context.Context, ids []uuid.UUID, blocked bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			u.IsBlocked = blocked
			n++
		}
	}
	return n, nil
}

func (r *memRepo) MarkDeleted(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			u.IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListActive(_ context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*user.User
	for _, u := range r.byID {
		if !u.IsDeleted {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// mockRepo drives store failure paths.
type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockRepo) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) Insert(ctx context.Context, u *user.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// mockIssuer lets tests fail token issuance.
type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Issue(u *user.User) (string, error) {
	args := m.Called(u)
	return args.String(0), args.Error(1)
}
