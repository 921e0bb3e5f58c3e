package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Groups   []string `json:"groups"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// userView is a user without its password hash.
type userView struct {
	Username  string    `json:"username"`
	Groups    []string  `json:"groups"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type handlers struct {
	auth   Authenticator
	users  UserManager
	logger logging.Logger
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	resp, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrAuthenticationFailed) {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: common.ErrAuthenticationFailed.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) me(c echo.Context) error {
	claims := ClaimsFrom(c)
	if claims == nil {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, services.NewClaimsView(claims))
}

func (h *handlers) listUsers(c echo.Context) error {
	ctx := c.Request().Context()

	list, err := h.users.ListUsers(ctx)
	if err != nil {
		h.logger.Error(ctx, "list users failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}

	out := make([]userView, 0, len(list))
	for _, u := range list {
		out = append(out, newUserView(u))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) createUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	user, err := h.users.AddUser(ctx, req.Username, req.Password, req.Groups)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, errorResponse{Error: "user already exists"})
	case errors.Is(err, common.ErrInvalidUsername), errors.Is(err, common.ErrInvalidPasswordInput):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error(ctx, "create user failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}

	creds, _ := MasterFrom(c)
	h.logger.Info(ctx, "user created via master", "username", user.Username, "by", creds.Username)
	return c.JSON(http.StatusCreated, newUserView(user))
}

func (h *handlers) deleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	if err := h.users.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "user not found"})
		}
		h.logger.Error(ctx, "delete user failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}

	creds, _ := MasterFrom(c)
	h.logger.Info(ctx, "user deleted via master", "username", username, "by", creds.Username)
	return c.NoContent(http.StatusNoContent)
}

func newUserView(u *models.User) userView {
	return userView{
		Username:  u.Username,
		Groups:    u.Groups,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
