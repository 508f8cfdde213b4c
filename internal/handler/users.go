package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/dfelizola/internal-messenger-api/internal/config"
	"github.com/dfelizola/internal-messenger-api/internal/middleware"
	"github.com/dfelizola/internal-messenger-api/internal/model"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
	"github.com/dfelizola/internal-messenger-api/internal/search"
	"github.com/dfelizola/internal-messenger-api/internal/token"
)

// UsersHandler bundles dependencies for the user directory endpoints.
type UsersHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *token.Service
	Search *search.Service
}

func NewUsersHandler(cfg config.Config, users *repository.UserRepo, tokens *token.Service, searcher *search.Service) *UsersHandler {
	return &UsersHandler{Cfg: cfg, Users: users, Tokens: tokens, Search: searcher}
}

type createUserReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Active   *bool  `json:"active"`
}

func (r createUserReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.Role, validation.In(model.RoleEmployee, model.RoleAdmin)),
	)
}

// Index serves the directory search.  Filter, sort and pagination
// parameters are all optional; anything unrecognized is ignored or falls
// back to a default, never an error.
func (h *UsersHandler) Index(c echo.Context) error {
	filters := map[string]string{}
	for _, key := range search.FilterKeys() {
		if v := c.QueryParam(key); v != "" {
			filters[key] = v
		}
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	result, err := h.Search.Search(ctx, search.Params{
		Filters: filters,
		SortBy:  c.QueryParam("sort_by"),
		Order:   c.QueryParam("order"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return renderInternal(c, "search failed")
	}

	users := make([]model.PublicUser, 0, len(result.Users))
	for _, u := range result.Users {
		users = append(users, u.Public())
	}
	return renderSuccess(c, echo.Map{"users": users, "meta": result.Meta}, "")
}

// Show returns a single directory entry.  Non-admins may only view their
// own record.
func (h *UsersHandler) Show(c echo.Context) error {
	p, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	if !canAccessUser(p, id) {
		return renderForbidden(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return h.userError(c, err, "load user failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()}, "")
}

// Create adds a directory entry (admin only).  Unlike register, the caller
// may choose role and the initial active flag.
func (h *UsersHandler) Create(c echo.Context) error {
	var req createUserReq
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
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, repository.NewUser{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Active:   active,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return renderValidationErrors(c, []string{"email has already been taken"})
		}
		return renderInternal(c, "create user failed")
	}
	return renderCreated(c, echo.Map{"user": u.Public()}, "User created successfully")
}

// Update applies a partial update to a directory entry.  Admins may edit
// anyone and any field; everyone else may edit only their own record, with
// role and active silently dropped.
func (h *UsersHandler) Update(c echo.Context) error {
	p, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	if !canAccessUser(p, id) {
		return renderForbidden(c)
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

	u, err := h.Users.Update(ctx, id, req.toRepo(), h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return renderValidationErrors(c, []string{"email has already been taken"})
		}
		return h.userError(c, err, "update failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()}, "User updated successfully")
}

// Delete removes a directory entry permanently (admin only).
func (h *UsersHandler) Delete(c echo.Context) error {
	_, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return h.userError(c, err, "delete failed")
	}
	return renderSuccess(c, nil, "User deleted successfully")
}

// Activate re-enables a deactivated account (admin only).
func (h *UsersHandler) Activate(c echo.Context) error {
	_, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetActive(ctx, id, true); err != nil {
		return h.userError(c, err, "activate failed")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return h.userError(c, err, "load user failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()}, "User activated successfully")
}

// Deactivate disables an account and revokes all of its tokens (admin
// only).  The revocation means a deactivated user's token stops validating
// immediately, not merely on the next active-flag check.
func (h *UsersHandler) Deactivate(c echo.Context) error {
	_, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetActive(ctx, id, false); err != nil {
		return h.userError(c, err, "deactivate failed")
	}
	if err := h.Tokens.InvalidateAll(ctx, id); err != nil {
		return renderInternal(c, "deactivate failed")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return h.userError(c, err, "load user failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()},
		"User deactivated successfully. All user tokens have been invalidated.")
}

// InvalidateTokens force-logs-out a user everywhere without touching the
// account itself (admin only).
func (h *UsersHandler) InvalidateTokens(c echo.Context) error {
	_, id, err := h.principalAndID(c)
	if err != nil {
		return renderNotFound(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Tokens.InvalidateAll(ctx, id); err != nil {
		return h.userError(c, err, "invalidate tokens failed")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return h.userError(c, err, "load user failed")
	}
	return renderSuccess(c, echo.Map{"user": u.Public()},
		"All tokens for this user have been invalidated. User will need to login again.")
}

// canAccessUser is the self-or-admin rule gating Show and Update.
func canAccessUser(p token.Principal, targetID uint64) bool {
	return p.IsAdmin() || p.UserID == targetID
}

// principalAndID pulls the authenticated principal and the :id route
// parameter.  A non-numeric id is reported the same way as an absent user.
func (h *UsersHandler) principalAndID(c echo.Context) (token.Principal, uint64, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return token.Principal{}, 0, errors.New("no principal")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return p, 0, errors.New("bad id")
	}
	return p, id, nil
}

// userError maps repository failures onto the envelope: missing users are a
// 404, anything else a 500 with a terse hint.
func (h *UsersHandler) userError(c echo.Context, err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return renderNotFound(c)
	}
	return renderInternal(c, msg)
}
