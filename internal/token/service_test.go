package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
)

// memStore is an in-memory UserStore with the same atomicity guarantee the
// database gives the real one.
type memStore struct {
	mu    sync.Mutex
	users map[uint64]model.User
}

func newMemStore(users ...model.User) *memStore {
	m := &memStore{users: map[uint64]model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memStore) BumpTokenVersion(_ context.Context, id uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.TokenVersion++
	m.users[id] = u
	return u.TokenVersion, nil
}

func (m *memStore) set(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func testUser() model.User {
	return model.User{
		ID:     1,
		Name:   "Ana Lima",
		Email:  "ana@example.com",
		Role:   model.RoleEmployee,
		Active: true,
	}
}

func newTestService(store *memStore) *Service {
	return NewService("test-secret", 24*time.Hour, store)
}

func TestIssueAndValidate(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	p, err := svc.Validate(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: 1, Role: model.RoleEmployee, TokenVersion: 0}, p)
}

func TestValidateMalformed(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Validate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrMalformed, "raw=%q", raw)
	}
}

func TestValidateWrongKeyIsMalformed(t *testing.T) {
	store := newMemStore(testUser())
	other := NewService("another-secret", 24*time.Hour, store)
	signed, err := other.Issue(testUser())
	require.NoError(t, err)

	svc := newTestService(store)
	_, err = svc.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateExpired(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	issuedAt := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	// Still live one minute before expiry.
	svc.now = func() time.Time { return issuedAt.Add(24*time.Hour - time.Minute) }
	_, err = svc.Validate(context.Background(), signed)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(24*time.Hour + time.Minute) }
	_, err = svc.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateUnknownSubject(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	delete(store.users, 1)
	_, err = svc.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestValidateInactive(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	u := testUser()
	u.Active = false
	store.set(u)

	_, err = svc.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestInvalidateAllMakesOldTokensStale(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	t1, err := svc.Issue(testUser())
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateAll(context.Background(), 1))

	u, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), u.TokenVersion)

	_, err = svc.Validate(context.Background(), t1)
	assert.ErrorIs(t, err, ErrStaleToken)

	// Tokens issued against the new version succeed.
	t2, err := svc.Issue(u)
	require.NoError(t, err)
	p, err := svc.Validate(context.Background(), t2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.TokenVersion)
}

func TestInvalidateAllIncrementsByExactlyOnePerCall(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.InvalidateAll(context.Background(), 1))
	}
	u, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), u.TokenVersion)
}

func TestRefreshRotatesTheSession(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	old, err := svc.Issue(testUser())
	require.NoError(t, err)

	fresh, u, err := svc.Refresh(context.Background(), testUser())
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, uint32(1), u.TokenVersion)

	_, err = svc.Validate(context.Background(), old)
	assert.ErrorIs(t, err, ErrStaleToken)

	p, err := svc.Validate(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.TokenVersion)
}

func TestValidateRejectsUnsignedToken(t *testing.T) {
	store := newMemStore(testUser())
	svc := newTestService(store)

	// header {"alg":"HS256"} and empty claims, no signature
	_, err := svc.Validate(context.Background(), "eyJhbGciOiJIUzI1NiJ9.e30.")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRefreshFailsForMissingUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, _, err := svc.Refresh(context.Background(), testUser())
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
