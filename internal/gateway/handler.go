package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type Admission interface {
	Admit(ctx context.Context, role pairing.Role, id string) error
}

type HandlerConfig struct {
	AllowedOrigins []string
	Endpoint       EndpointConfig
}

type Handler struct {
	deps      Dependencies
	cfg       EndpointConfig
	admission Admission
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

func NewHandler(deps Dependencies, admission Admission, cfg HandlerConfig) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps.Logger = logger
	return &Handler{
		deps:      deps,
		cfg:       cfg.Endpoint,
		admission: admission,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger: logger.With("component", "ws_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	e.GET("/ws/:role/:id", h.HandleWebSocket, m...)
}

func (h *Handler) HandleWebSocket(c echo.Context) error {
	role, err := pairing.ParseRole(c.Param("role"))
	if err != nil {
		h.deps.Metrics.Admission(c.Param("role"), "invalid_role")
		return shared.BadRequest("invalid_role", "role must be customer or employee")
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return shared.BadRequest("invalid_id", "session id is required")
	}
	lang := c.QueryParam("lang")
	if lang == "" {
		lang = pairing.DefaultLanguage
	}

	ctx := c.Request().Context()
	if h.admission != nil {
		if err := h.admission.Admit(ctx, role, id); err != nil {
			h.deps.Metrics.Admission(role.String(), "denied")
			h.logger.Warn("admission denied", "id", id, "role", role, "error", err)
			return shared.FromError(err, "admission_denied", "identity is not allowed to connect")
		}
	}
	if h.deps.Registry.Has(id) {
		h.deps.Metrics.Admission(role.String(), "duplicate")
		return shared.Conflict("already_connected", "session id already connected")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return nil
	}

	conn := NewConn(ws, h.logger.With("session_id", id))
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		conn.writePump(context.WithoutCancel(ctx))
	}()

	endpoint := NewEndpoint(id, role, lang, conn, h.deps, h.cfg)
	if err := endpoint.Serve(ctx, conn); err != nil {
		outcome := "error"
		if errors.Is(err, pairing.ErrAlreadyConnected) {
			outcome = "duplicate"
		}
		h.deps.Metrics.Admission(role.String(), outcome)
		h.logger.Warn("admission failed after upgrade", "id", id, "error", err)
		_ = conn.Close()
	} else {
		h.deps.Metrics.Admission(role.String(), "completed")
	}

	<-pumpDone
	return nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
