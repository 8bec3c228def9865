package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type RegistryStats struct {
	Connections int `json:"connections"`
	Waiting     int `json:"waiting"`
	Idle        int `json:"idle"`
	Pairs       int `json:"pairs"`
}

type Stats struct {
	Registry RegistryStats `json:"registry"`
	Runtime  RuntimeStats  `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

// Snapshotter exposes the live pairing state.
type Snapshotter interface {
	Snapshot() pairing.Snapshot
}

type Dependencies struct {
	DB       *gorm.DB
	Redis    *redis.Client
	STT      *sidecar.Client
	TTS      *sidecar.Client
	Registry Snapshotter
	Version  string
}

type Handler struct {
	deps      Dependencies
	startTime time.Time
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Readiness)
	e.GET("/health/live", h.Liveness)
	e.GET("/health/registry", h.Registry)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"database", h.checkDatabase},
		{"redis", h.checkRedis},
		{"stt", func(context.Context) ComponentStatus { return checkSidecar(h.deps.STT) }},
		{"tts", func(context.Context) ComponentStatus { return checkSidecar(h.deps.TTS) }},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.deps.Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Registry: h.registryStats(),
			Runtime: RuntimeStats{
				Goroutines:         runtime.NumGoroutine(),
				MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
				MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
				MemorySysMB:        memStats.Sys / 1024 / 1024,
				NumGC:              memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) Registry(c echo.Context) error {
	if h.deps.Registry == nil {
		return c.JSON(http.StatusOK, pairing.Snapshot{Pairs: map[string]string{}})
	}
	return c.JSON(http.StatusOK, h.deps.Registry.Snapshot())
}

func (h *Handler) registryStats() RegistryStats {
	if h.deps.Registry == nil {
		return RegistryStats{}
	}
	snap := h.deps.Registry.Snapshot()
	return RegistryStats{
		Connections: snap.Total,
		Waiting:     len(snap.Waiting),
		Idle:        len(snap.Idle),
		Pairs:       len(snap.Pairs),
	}
}

func componentStatus(start time.Time, status Status, state, errMsg string) ComponentStatus {
	return ComponentStatus{
		Status:    status,
		LatencyMs: time.Since(start).Milliseconds(),
		State:     state,
		Error:     errMsg,
	}
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.deps.DB == nil {
		return componentStatus(start, StatusUnhealthy, "", "database not configured")
	}
	sqlDB, err := h.deps.DB.DB()
	if err != nil {
		return componentStatus(start, StatusUnhealthy, "", "failed to get underlying db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return componentStatus(start, StatusUnhealthy, "", "ping failed")
	}
	return componentStatus(start, evaluateDBStats(sqlDB.Stats()), "", "")
}

// evaluateDBStats reports a saturated connection pool as degraded.
func evaluateDBStats(stats sql.DBStats) Status {
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.deps.Redis == nil {
		return componentStatus(start, StatusUnhealthy, "", "redis not configured")
	}
	if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
		return componentStatus(start, StatusUnhealthy, "", "ping failed")
	}
	return componentStatus(start, StatusHealthy, "", "")
}

// checkSidecar reads the channel state without issuing a call. A sidecar
// whose calls mostly fail is reported degraded.
func checkSidecar(client *sidecar.Client) ComponentStatus {
	start := time.Now()
	if client == nil {
		return componentStatus(start, StatusUnhealthy, "", "not configured")
	}
	if !client.IsConnected() {
		return componentStatus(start, StatusUnhealthy, client.State(), "connection not ready")
	}
	if s := client.Stats(); s.Calls > 0 && s.Failures*2 > s.Calls {
		return componentStatus(start, StatusDegraded, client.State(), "")
	}
	return componentStatus(start, StatusHealthy, client.State(), "")
}

// computeOverallStatus treats the database and Redis as critical. Recognition
// and synthesis sidecars only degrade the service, since pairing and chat
// keep working without them.
func computeOverallStatus(components map[string]ComponentStatus) Status {
	criticalComponents := []string{"database", "redis"}

	for _, name := range criticalComponents {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	for _, status := range components {
		if status.Status != StatusHealthy {
			return StatusDegraded
		}
	}

	return StatusHealthy
}
