package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/eleven-am/voice-relay/internal/sidecar/sidecartest"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeRegistry struct {
	snap pairing.Snapshot
}

func (f fakeRegistry) Snapshot() pairing.Snapshot { return f.snap }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func setupTestSidecar(t *testing.T) *sidecar.Client {
	t.Helper()
	cfg := sidecartest.NewServer(t, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	})
	client, err := sidecar.Dial(cfg, nil)
	if err != nil {
		t.Fatalf("dial sidecar: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Liveness(t *testing.T) {
	rec := serve(NewHandler(Dependencies{}), "/health/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ReadinessHealthy(t *testing.T) {
	rdb := setupTestRedis(t)
	h := NewHandler(Dependencies{
		DB:    setupTestDB(t),
		Redis: rdb,
		STT:   setupTestSidecar(t),
		TTS:   setupTestSidecar(t),
		Registry: fakeRegistry{snap: pairing.Snapshot{
			Waiting: []string{"c2"},
			Pairs:   map[string]string{"c1": "e1"},
			Total:   3,
		}},
		Version: "test",
	})

	rec := serve(h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s (%+v)", resp.Status, resp.Components)
	}
	if resp.Version != "test" {
		t.Errorf("expected version test, got %q", resp.Version)
	}
	for _, name := range []string{"database", "redis", "stt", "tts"} {
		if _, ok := resp.Components[name]; !ok {
			t.Errorf("missing component %s", name)
		}
	}
	if resp.Stats.Registry.Connections != 3 || resp.Stats.Registry.Waiting != 1 || resp.Stats.Registry.Pairs != 1 {
		t.Errorf("unexpected registry stats: %+v", resp.Stats.Registry)
	}
}

func TestHandler_ReadinessRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	h := NewHandler(Dependencies{DB: setupTestDB(t), Redis: rdb})
	rec := serve(h, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Components["redis"].Status != StatusUnhealthy {
		t.Errorf("expected redis unhealthy, got %+v", resp.Components["redis"])
	}
}

func TestHandler_ReadinessSidecarsMissing(t *testing.T) {
	rdb := setupTestRedis(t)
	h := NewHandler(Dependencies{DB: setupTestDB(t), Redis: rdb})

	rec := serve(h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != StatusDegraded {
		t.Errorf("missing sidecars should degrade, got %s", resp.Status)
	}
	if resp.Components["stt"].Error != "not configured" {
		t.Errorf("unexpected stt status: %+v", resp.Components["stt"])
	}
}

func TestHandler_Registry(t *testing.T) {
	snap := pairing.Snapshot{
		Waiting: []string{"c2", "c3"},
		Idle:    []string{},
		Pairs:   map[string]string{"c1": "e1"},
		Total:   4,
	}
	rec := serve(NewHandler(Dependencies{Registry: fakeRegistry{snap: snap}}), "/health/registry")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got pairing.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 4 || len(got.Waiting) != 2 || got.Pairs["c1"] != "e1" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{
			name:       "all healthy",
			components: map[string]ComponentStatus{"database": {Status: StatusHealthy}, "stt": {Status: StatusHealthy}},
			want:       StatusHealthy,
		},
		{
			name:       "critical down",
			components: map[string]ComponentStatus{"database": {Status: StatusUnhealthy}, "stt": {Status: StatusHealthy}},
			want:       StatusUnhealthy,
		},
		{
			name:       "non-critical down",
			components: map[string]ComponentStatus{"database": {Status: StatusHealthy}, "tts": {Status: StatusUnhealthy}},
			want:       StatusDegraded,
		},
		{
			name:       "degraded",
			components: map[string]ComponentStatus{"redis": {Status: StatusDegraded}},
			want:       StatusDegraded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEvaluateDBStats(t *testing.T) {
	tests := []struct {
		name  string
		stats sql.DBStats
		want  Status
	}{
		{name: "unbounded pool", stats: sql.DBStats{InUse: 50}, want: StatusHealthy},
		{name: "spare capacity", stats: sql.DBStats{MaxOpenConnections: 10, InUse: 3}, want: StatusHealthy},
		{name: "saturated", stats: sql.DBStats{MaxOpenConnections: 10, InUse: 10}, want: StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluateDBStats(tt.stats); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
