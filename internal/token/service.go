// Package token issues and validates the self-contained bearer tokens used
// for authentication.  No session state is kept server-side: a token is an
// HS256 JWT carrying the subject's id, role and token version, and it is
// live only while that version still matches the user row.  Bumping the
// version revokes every outstanding token for the user at once.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
)

// Validation failures.  Handlers collapse all of them into a generic 401 so
// the response never reveals which check rejected the token.
var (
	ErrMalformed      = errors.New("token malformed or signature invalid")
	ErrExpired        = errors.New("token expired")
	ErrUnknownSubject = errors.New("token subject no longer exists")
	ErrStaleToken     = errors.New("token version is stale")
	ErrInactive       = errors.New("account is inactive")
)

// Principal is the authenticated identity resolved from a valid token for
// the duration of one request.
type Principal struct {
	UserID       uint64
	Role         string
	TokenVersion uint32
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// UserStore is the persistence surface the service needs: resolve a subject
// and atomically bump its token version.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	BumpTokenVersion(ctx context.Context, id uint64) (uint32, error)
}

// Service signs and validates tokens.  The secret, TTL and clock are
// injected so tests can run with distinct keys and frozen time.
type Service struct {
	secret []byte
	ttl    time.Duration
	users  UserStore
	now    func() time.Time
}

// NewService builds a token service with the given signing secret and TTL.
func NewService(secret string, ttl time.Duration, users UserStore) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue signs a token for the user's current state.  It has no side
// effects; the token simply snapshots id, role and token version together
// with issued-at and expiry instants.
func (s *Service) Issue(u model.User) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": u.Role,
		"tv":   u.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses and verifies a raw token string and resolves it to a
// Principal.  The checks run in order: signature and shape, expiry, subject
// existence, token version, active flag.  The first failing check wins.
func (s *Service) Validate(ctx context.Context, raw string) (Principal, error) {
	tok, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpired
		}
		return Principal{}, ErrMalformed
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrMalformed
	}

	// Numeric claims decode as float64.
	sub, okSub := claims["sub"].(float64)
	role, okRole := claims["role"].(string)
	tv, okTV := claims["tv"].(float64)
	if !okSub || !okRole || !okTV || sub < 1 || tv < 0 {
		return Principal{}, ErrMalformed
	}

	u, err := s.users.GetByID(ctx, uint64(sub))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrUnknownSubject
		}
		return Principal{}, err
	}
	if u.TokenVersion != uint32(tv) {
		return Principal{}, ErrStaleToken
	}
	if !u.Active {
		return Principal{}, ErrInactive
	}
	return Principal{UserID: u.ID, Role: role, TokenVersion: u.TokenVersion}, nil
}

// InvalidateAll revokes every outstanding token for the user by bumping the
// stored token version by exactly one.  The increment is a single atomic
// UPDATE, so concurrent revocations serialize at the database and none are
// lost.
func (s *Service) InvalidateAll(ctx context.Context, userID uint64) error {
	_, err := s.users.BumpTokenVersion(ctx, userID)
	return err
}

// Refresh revokes all outstanding tokens for the user and issues a fresh
// one against the new version.  After Refresh returns, the previously held
// token can never validate again.
func (s *Service) Refresh(ctx context.Context, u model.User) (string, model.User, error) {
	version, err := s.users.BumpTokenVersion(ctx, u.ID)
	if err != nil {
		return "", model.User{}, err
	}
	u.TokenVersion = version
	signed, err := s.Issue(u)
	if err != nil {
		return "", model.User{}, err
	}
	return signed, u, nil
}
