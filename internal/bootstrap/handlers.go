package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/voice-relay/internal/account"
	"github.com/eleven-am/voice-relay/internal/gateway"
	"github.com/eleven-am/voice-relay/internal/metrics"
	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/session"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/translation"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

type gatewayParams struct {
	fx.In

	Config      *Config
	Registry    *pairing.Registry
	Recognizer  transcription.Recognizer
	Translator  *translation.Service
	Synthesizer synthesis.Synthesizer
	Metrics     *metrics.Metrics
	Admission   gateway.Admission
	Logger      *slog.Logger
}

func ProvideGatewayHandler(p gatewayParams) (*gateway.Handler, error) {
	endpointCfg, err := p.Config.EndpointConfig()
	if err != nil {
		return nil, err
	}
	deps := gateway.Dependencies{
		Registry:    p.Registry,
		Recognizer:  p.Recognizer,
		Translator:  p.Translator,
		Synthesizer: p.Synthesizer,
		Metrics:     p.Metrics,
		Logger:      p.Logger,
	}
	return gateway.NewHandler(deps, p.Admission, gateway.HandlerConfig{
		AllowedOrigins: p.Config.AllowedOrigins,
		Endpoint:       endpointCfg,
	}), nil
}

func ProvideAccountHandler(store *account.Store, logger *slog.Logger) *account.Handler {
	return account.NewHandler(store, logger.With("handler", "account"))
}

func ProvideSessionHandler(store *session.Store, logger *slog.Logger) *session.Handler {
	return session.NewHandler(store, logger.With("handler", "session"))
}

type HandlerParams struct {
	fx.In

	GatewayHandler *gateway.Handler
	AccountHandler *account.Handler
	SessionHandler *session.Handler
	Config         *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	limiter := gateway.RateLimiter(gateway.RateLimiterConfig{
		RequestsPerSecond: params.Config.RateLimitRPS,
		Burst:             params.Config.RateLimitBurst,
	})
	params.GatewayHandler.RegisterRoutes(e, limiter)
	params.AccountHandler.RegisterRoutes(e.Group("/auth", limiter))
	params.SessionHandler.RegisterRoutes(e.Group("/v1/metrics"))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideGatewayHandler,
		ProvideAccountHandler,
		ProvideSessionHandler,
	),
	fx.Invoke(RegisterRoutes),
)
