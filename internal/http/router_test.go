package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/redmonkez12/usergate/internal/auth"
	"github.com/redmonkez12/usergate/internal/config"
	"github.com/redmonkez12/usergate/internal/database"
	"github.com/redmonkez12/usergate/internal/httputil"
	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/ratelimit"
	"github.com/redmonkez12/usergate/internal/user"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouterWith(t, config.ServerConfig{Env: "prod", TrustedOrigins: []string{"http://localhost:3000"}}, 100)
}

func newTestRouterWith(t *testing.T, server config.ServerConfig, maxRequests int) http.Handler {
	t.Helper()

	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(context.Background(), sqlDB, database.DialectSQLite))
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{Server: server}
	logger := logging.NewNopLogger()

	repo := user.NewRepository(db)
	tokens := auth.NewJWTService([]byte("router-test-key-router-test-key!!"), "usergate", "usergate-web", time.Hour)
	authService := auth.NewService(repo, tokens, auth.SHA256Hasher{}, logger)

	return NewRouter(cfg, Handlers{
		Auth:           auth.NewHandler(authService, ratelimit.NewLimiter(rdb, maxRequests, time.Minute)),
		Users:          user.NewHandler(user.NewService(repo, logger)),
		AuthMiddleware: auth.NewMiddleware(auth.NewGate(tokens, repo, logger)),
	}, logger)
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	rec := call(t, h, http.MethodPost, "/api/users/register", "", map[string]string{
		"email": email, "name": "Name " + email, "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp auth.RegisterResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Token
}

func listUsers(t *testing.T, h http.Handler, token string) []user.Summary {
	t.Helper()

	rec := call(t, h, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var users []user.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&users))
	return users
}

func findID(t *testing.T, users []user.Summary, email string) uuid.UUID {
	t.Helper()
	for _, u := range users {
		if u.Email == email {
			return u.ID
		}
	}
	t.Fatalf("user %s not listed", email)
	return uuid.Nil
}

func TestRouter_AdminFlow(t *testing.T) {
	h := newTestRouter(t)

	adminToken := register(t, h, "admin@example.com")
	register(t, h, "alice@example.com")
	register(t, h, "bob@example.com")

	users := listUsers(t, h, adminToken)
	require.Len(t, users, 3)
	aliceID := findID(t, users, "alice@example.com")
	bobID := findID(t, users, "bob@example.com")

	rec := call(t, h, http.MethodPut, "/api/users/block", adminToken, []uuid.UUID{aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Selected users blocked.","affected":1}`, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/api/users/login", "", map[string]string{"email": "alice@example.com", "password": "secret"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/users/check-status?userId="+aliceID.String(), adminToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodPut, "/api/users/unblock", adminToken, []uuid.UUID{aliceID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/users/check-status?userId="+aliceID.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodDelete, "/api/users/delete", adminToken, []uuid.UUID{bobID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Selected users deleted.","affected":1}`, rec.Body.String())

	users = listUsers(t, h, adminToken)
	assert.Len(t, users, 2)

	// Deleted email stays reserved.
	rec = call(t, h, http.MethodPost, "/api/users/register", "", map[string]string{
		"email": "bob@example.com", "name": "Bob again", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_LoginOrdersListing(t *testing.T) {
	h := newTestRouter(t)

	token := register(t, h, "first@example.com")
	register(t, h, "second@example.com")

	time.Sleep(5 * time.Millisecond)
	rec := call(t, h, http.MethodPost, "/api/users/login", "", map[string]string{"email": "first@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var login auth.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))
	assert.NotEqual(t, token, login.Token)
	assert.Equal(t, "first@example.com", login.User.Email)

	users := listUsers(t, h, login.Token)
	require.Len(t, users, 2)
	assert.Equal(t, "first@example.com", users[0].Email)
}

func TestRouter_SelfBlockLocksOut(t *testing.T) {
	h := newTestRouter(t)

	token := register(t, h, "self@example.com")
	selfID := findID(t, listUsers(t, h, token), "self@example.com")

	rec := call(t, h, http.MethodPut, "/api/users/block", token, []uuid.UUID{selfID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_BulkValidation(t *testing.T) {
	h := newTestRouter(t)
	token := register(t, h, "admin@example.com")

	rec := call(t, h, http.MethodPut, "/api/users/block", token, []uuid.UUID{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, httputil.CodeValidationFailed, resp.Code)

	rec = call(t, h, http.MethodPut, "/api/users/block", token, []string{"not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPut, "/api/users/block"},
		{http.MethodPut, "/api/users/unblock"},
		{http.MethodDelete, "/api/users/delete"},
		{http.MethodGet, "/api/users/check-status?userId=" + uuid.NewString()},
	} {
		rec := call(t, h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := call(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = call(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")

	register(t, h, "metrics@example.com")
	rec = call(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usergate_auth_register_total")

	rec = call(t, h, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitKeyHonoursTrustProxy(t *testing.T) {
	login := func(h http.Handler, forwarded string) int {
		body := strings.NewReader(`{"email":"nobody@example.com","password":"p"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", body)
		req.RemoteAddr = "10.0.0.5:40000"
		req.Header.Set("X-Forwarded-For", forwarded)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := newTestRouterWith(t, config.ServerConfig{Env: "prod"}, 1)
	assert.Equal(t, http.StatusUnauthorized, login(direct, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, login(direct, "203.0.113.2"))

	proxied := newTestRouterWith(t, config.ServerConfig{Env: "prod", TrustProxy: true}, 1)
	assert.Equal(t, http.StatusUnauthorized, login(proxied, "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, login(proxied, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, login(proxied, "203.0.113.1"))
}
