package session

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/voice-relay/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	defaultDays = 7
	maxDays     = 30
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("component", "session_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/pairings", h.GetPairingStats)
}

type pairingStatsResponse struct {
	Days  int           `json:"days"`
	Stats []*DailyStats `json:"stats"`
}

func (h *Handler) GetPairingStats(c echo.Context) error {
	days := defaultDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxDays {
			return shared.BadRequest("invalid_days", "days must be between 1 and 30")
		}
		days = n
	}

	stats, err := h.store.DailyStats(c.Request().Context(), days)
	if err != nil {
		h.logger.Error("failed to get pairing stats", "error", err)
		return shared.InternalError("stats_failed", "failed to get pairing stats")
	}
	if stats == nil {
		stats = []*DailyStats{}
	}

	return c.JSON(http.StatusOK, pairingStatsResponse{Days: days, Stats: stats})
}
