package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/dfelizola/internal-messenger-api/internal/config"
	"github.com/dfelizola/internal-messenger-api/internal/middleware"
	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/queue"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
	queuepublisher "github.com/dfelizola/internal-messenger-api/internal/service"
	"github.com/dfelizola/internal-messenger-api/internal/token"
	"github.com/dfelizola/internal-messenger-api/internal/utils"
)

// dbTimeout bounds every database round trip started from a handler.
const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the session and profile endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *token.Service
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, tokens *token.Service) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Tokens: tokens}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.Role, validation.In(model.RoleEmployee, model.RoleAdmin)),
	)
}

// userUpdateReq is the partial-update payload shared by PUT /profile and
// PUT /users/:id.  Nil fields are left untouched.
type userUpdateReq struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func (r userUpdateReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(2, 50)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Length(6, 72)),
		validation.Field(&r.Role, validation.In(model.RoleEmployee, model.RoleAdmin)),
	)
}

// restrictForNonAdmin silently drops the role and active fields from an
// update requested by a non-admin.  Dropping instead of rejecting means a
// regular user can never elevate their role or toggle their account through
// the generic update path, without turning such payloads into errors.
func restrictForNonAdmin(p token.Principal, req userUpdateReq) userUpdateReq {
	if p.IsAdmin() {
		return req
	}
	req.Role = nil
	req.Active = nil
	return req
}

func (r userUpdateReq) toRepo() repository.UserUpdate {
	return repository.UserUpdate{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Role:     r.Role,
		Active:   r.Active,
	}
}

// ----- Endpoints -----

// Login verifies credentials and issues a token for the user's current
// token version.  Unknown email and wrong password produce the identical
// response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return renderError(c, http.StatusUnauthorized, "Invalid credentials")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return renderError(c, http.StatusUnauthorized, "Invalid credentials")
		}
		return renderInternal(c, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return renderError(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if !u.Active {
		return renderError(c, http.StatusUnauthorized, "Account is inactive")
	}

	signed, err := h.Tokens.Issue(u)
	if err != nil {
		return renderInternal(c, "issue token failed")
	}
	return renderSuccess(c, echo.Map{"token": signed, "user": u.Public()}, "")
}

// Logout revokes every outstanding token for the current principal by
// bumping the token version.  The client-held token stops validating
// immediately, on every device.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return renderUnauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Tokens.InvalidateAll(ctx, p.UserID); err != nil {
		return renderInternal(c, "logout failed")
	}
	return renderSuccess(c, nil, "Successfully logged out")
}

// RefreshToken rotates the session: all previously issued tokens become
// stale and a fresh token against the new version is returned.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return renderUnauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return renderInternal(c, "load user failed")
	}
	signed, u, err := h.Tokens.Refresh(ctx, u)
	if err != nil {
		return renderInternal(c, "refresh failed")
	}
	return renderSuccess(c, echo.Map{"token": signed, "user": u.Public()}, "")
}

// Profile returns the current principal's own record.
func (h *AuthHandler) Profile(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return renderUnauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return renderInternal(c, "load user failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()}, "")
}

// UpdateProfile applies a partial update to the principal's own record.
// Role and active changes are dropped for non-admins.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return renderUnauthorized(c)
	}
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return renderValidationErrors(c, []string{"request body is not valid JSON"})
	}
	req = restrictForNonAdmin(p, req)
	if err := req.Validate(); err != nil {
		return renderValidationErrors(c, collectMessages(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, p.UserID, req.toRepo(), h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return renderValidationErrors(c, []string{"email has already been taken"})
		}
		return renderInternal(c, "update failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()}, "Profile updated successfully")
}

// Register creates an account and logs it in immediately.  The welcome
// notification is fire-and-forget: a publish failure is logged and never
// fails the registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return renderValidationErrors(c, []string{"request body is not valid JSON"})
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Role == "" {
		req.Role = model.RoleEmployee
	}
	if err := req.Validate(); err != nil {
		return renderValidationErrors(c, collectMessages(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, repository.NewUser{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Active:   true,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return renderValidationErrors(c, []string{"email has already been taken"})
		}
		return renderInternal(c, "create user failed")
	}

	signed, err := h.Tokens.Issue(u)
	if err != nil {
		return renderInternal(c, "issue token failed")
	}

	go func(u model.User) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		if err := queuepublisher.PublishUserRegistered(pubCtx, queue.UserRegisteredEvent{
			UserID:       u.ID,
			Name:         u.Name,
			Email:        u.Email,
			RegisteredAt: u.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("register: welcome event publish failed for user %d: %v", u.ID, err)
		}
	}(u)

	return renderCreated(c, echo.Map{"token": signed, "user": u.Public()},
		"User registered successfully")
}
