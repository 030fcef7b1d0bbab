package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/user"
)

// Claims is the payload of an access token. NameID mirrors the subject for
// clients that read the nameid claim.
type Claims struct {
	Email  string `json:"email"`
	NameID string `json:"nameid,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 access tokens. It keeps no state
// per token.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewJWTService(key []byte, issuer, audience string, ttl time.Duration) *JWTService {
	return &JWTService{
		key:      key,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for iat, exp and validation.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// Issue signs a token for u with a fresh jti.
func (s *JWTService) Issue(u *user.User) (string, error) {
	if u == nil || u.ID == uuid.Nil {
		return "", errors.New("cannot issue token without a user id")
	}

	issuedAt := s.now().UTC()
	subject := u.ID.String()

	claims := Claims{
		Email:  u.Email,
		NameID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate checks signature, issuer, audience and that now lies in the
// closed interval [iat, exp] with no skew. Claims carry whole seconds, so now
// is compared at the same precision. Every failure collapses to ok == false.
func (s *JWTService) Validate(tokenStr string) (*Claims, bool) {
	if tokenStr == "" {
		return nil, false
	}

	// The library treats exp as exclusive. One second of leeway makes it
	// inclusive at second precision; the exact window is enforced below.
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, false
	}

	now := s.now().Truncate(time.Second)
	if now.Before(claims.IssuedAt.Time) || now.After(claims.ExpiresAt.Time) {
		return nil, false
	}

	return claims, true
}

func (s *JWTService) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.key, nil
}
