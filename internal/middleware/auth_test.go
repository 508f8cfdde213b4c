package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
	"github.com/dfelizola/internal-messenger-api/internal/token"
)

type staticStore struct{ user model.User }

func (s staticStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	if id != s.user.ID {
		return model.User{}, repository.ErrNotFound
	}
	return s.user, nil
}

func (s staticStore) BumpTokenVersion(_ context.Context, _ uint64) (uint32, error) {
	return s.user.TokenVersion + 1, nil
}

func activeEmployee() model.User {
	return model.User{ID: 42, Role: model.RoleEmployee, Active: true}
}

func runAuth(t *testing.T, authHeader string, svc *token.Service) (*httptest.ResponseRecorder, *token.Principal) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *token.Principal
	next := func(c echo.Context) error {
		if p, ok := PrincipalFrom(c); ok {
			seen = &p
		}
		return c.NoContent(http.StatusOK)
	}
	require.NoError(t, Auth(svc)(next)(c))
	return rec, seen
}

func TestAuthAcceptsValidBearer(t *testing.T) {
	svc := token.NewService("secret", time.Hour, staticStore{user: activeEmployee()})
	signed, err := svc.Issue(activeEmployee())
	require.NoError(t, err)

	rec, seen := runAuth(t, "Bearer "+signed, svc)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, uint64(42), seen.UserID)
	assert.Equal(t, model.RoleEmployee, seen.Role)
}

func TestAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	svc := token.NewService("secret", time.Hour, staticStore{user: activeEmployee()})
	signed, err := svc.Issue(activeEmployee())
	require.NoError(t, err)

	headers := []string{
		"",                  // absent
		signed,              // no scheme
		"Basic dXNlcjpwdw==", // wrong scheme
		"Bearer ",           // empty token
		"Bearer not-a-jwt",  // unparseable
	}
	for _, h := range headers {
		rec, seen := runAuth(t, h, svc)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header=%q", h)
		assert.Nil(t, seen, "header=%q", h)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Unauthorized", body["error"])
	}
}

func TestAuthCollapsesValidationFailuresToGeneric401(t *testing.T) {
	inactive := activeEmployee()
	inactive.Active = false
	svc := token.NewService("secret", time.Hour, staticStore{user: inactive})

	signed, err := svc.Issue(inactive)
	require.NoError(t, err)

	rec, _ := runAuth(t, "Bearer "+signed, svc)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// The body must not say why: inactive accounts and bad signatures read
	// identically to the client.
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	run := func(p *token.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if p != nil {
			c.Set(principalKey, *p)
		}
		require.NoError(t, RequireAdmin(next)(c))
		return rec
	}

	admin := token.Principal{UserID: 1, Role: model.RoleAdmin}
	employee := token.Principal{UserID: 2, Role: model.RoleEmployee}

	assert.Equal(t, http.StatusOK, run(&admin).Code)
	assert.Equal(t, http.StatusForbidden, run(&employee).Code)
	assert.Equal(t, http.StatusForbidden, run(nil).Code)
}
