package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/voice-relay/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("component", "account_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/users", h.ListUsers)
	g.POST("/approve/:username", h.Approve)
	g.POST("/block/:username", h.Block)
}

func (h *Handler) Register(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	if _, err := h.store.Register(c.Request().Context(), creds); err != nil {
		switch {
		case errors.Is(err, shared.ErrConflict):
			return shared.BadRequest("user_exists", "User already exists")
		case errors.Is(err, shared.ErrInvalidInput):
			return shared.BadRequest("invalid_request", "username and password are required")
		}
		h.logger.Error("failed to register user", "error", err, "username", creds.Username)
		return shared.InternalError("register_failed", "failed to register user")
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Registration successful. Please wait for Admin approval."})
}

func (h *Handler) Login(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	session, err := h.store.Login(c.Request().Context(), creds)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrUnauthorized):
			return shared.Unauthorized("invalid_credentials", "Invalid credentials")
		case errors.Is(err, shared.ErrForbidden):
			return shared.Forbidden("pending_approval", "Account pending approval by Admin")
		}
		h.logger.Error("failed to log in", "error", err, "username", creds.Username)
		return shared.InternalError("login_failed", "failed to log in")
	}

	return c.JSON(http.StatusOK, session)
}

func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.store.List(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		return shared.InternalError("list_failed", "failed to list users")
	}
	if users == nil {
		users = []User{}
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) Approve(c echo.Context) error {
	username := c.Param("username")
	if err := h.store.Approve(c.Request().Context(), username); err != nil {
		return h.updateError(err, username)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User " + username + " approved"})
}

func (h *Handler) Block(c echo.Context) error {
	username := c.Param("username")
	if err := h.store.Block(c.Request().Context(), username); err != nil {
		return h.updateError(err, username)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User " + username + " blocked"})
}

func (h *Handler) updateError(err error, username string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("user_not_found", "User not found")
	}
	h.logger.Error("failed to update user", "error", err, "username", username)
	return shared.InternalError("update_failed", "failed to update user")
}
