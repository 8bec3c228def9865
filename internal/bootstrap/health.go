package bootstrap

import (
	"github.com/eleven-am/voice-relay/internal/health"
	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

type healthParams struct {
	fx.In

	DB       *gorm.DB
	Redis    *redis.Client
	STT      *sidecar.Client `name:"stt"`
	TTS      *sidecar.Client `name:"tts"`
	Registry *pairing.Registry
}

func ProvideHealthHandler(p healthParams) *health.Handler {
	return health.NewHandler(health.Dependencies{
		DB:       p.DB,
		Redis:    p.Redis,
		STT:      p.STT,
		TTS:      p.TTS,
		Registry: p.Registry,
		Version:  version,
	})
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
