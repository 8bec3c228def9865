package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/voice-relay/internal/account"
	"github.com/eleven-am/voice-relay/internal/gateway"
	"github.com/eleven-am/voice-relay/internal/metrics"
	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/translation"
	"go.uber.org/fx"
	"google.golang.org/grpc/credentials"
)

type SidecarClients struct {
	fx.Out

	STT *sidecar.Client `name:"stt"`
	TTS *sidecar.Client `name:"tts"`
}

func sidecarConfig(cfg *Config, addr string) sidecar.Config {
	sc := sidecar.Config{
		Address: addr,
		Token:   cfg.SidecarToken,
	}
	if cfg.SidecarTLS {
		sc.TLSCreds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return sc
}

// ProvideSidecars dials both sidecars. Recognition is required; synthesis is
// optional and chat goes out as text only without it.
func ProvideSidecars(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (SidecarClients, error) {
	stt, err := sidecar.Dial(sidecarConfig(cfg, cfg.STTAddress), logger)
	if err != nil {
		return SidecarClients{}, fmt.Errorf("recognition sidecar: %w", err)
	}

	tts, err := sidecar.Dial(sidecarConfig(cfg, cfg.TTSAddress), logger)
	if errors.Is(err, sidecar.ErrNotConfigured) {
		logger.Warn("TTS_ADDRESS not set, speech synthesis disabled")
		tts = nil
	} else if err != nil {
		stt.Close()
		return SidecarClients{}, fmt.Errorf("synthesis sidecar: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if tts != nil {
				tts.Close()
			}
			return stt.Close()
		},
	})
	return SidecarClients{STT: stt, TTS: tts}, nil
}

type recognizerParams struct {
	fx.In

	Client *sidecar.Client `name:"stt"`
	Config *Config
	Logger *slog.Logger
}

func ProvideRecognizer(p recognizerParams) transcription.Recognizer {
	langs := transcription.NewLanguages(p.Config.STTDefaultLanguage)
	return transcription.NewClient(p.Client, langs, p.Logger)
}

type synthesizerParams struct {
	fx.In

	Client *sidecar.Client `name:"tts"`
	Config *Config
	Logger *slog.Logger
}

func ProvideSynthesizer(p synthesizerParams) synthesis.Synthesizer {
	if p.Client == nil {
		return nil
	}
	return synthesis.NewClient(p.Client, p.Config.TTSVoice, p.Logger)
}

// ProvideTranslator falls back to passing text through untranslated when no
// Google credentials can be found.
func ProvideTranslator(cfg *Config, m *metrics.Metrics, logger *slog.Logger) *translation.Service {
	var backend translation.Translator
	client, err := translation.NewGoogleClient(context.Background(), translation.Config{
		APIKey:   cfg.TranslateAPIKey,
		Endpoint: cfg.TranslateEndpoint,
		RPS:      cfg.TranslateRPS,
	})
	if err != nil {
		logger.Warn("translation unavailable, relaying text untranslated", "error", err)
		backend = translation.Passthrough{}
	} else {
		backend = client
	}

	return translation.NewService(backend, func(error) {
		m.CollaboratorFailed("translation")
	}, logger)
}

func ProvideAdmission(cfg *Config, store *account.Store) gateway.Admission {
	if !cfg.RequireApproval {
		return nil
	}
	return account.NewApprovalGate(store)
}

var CollaboratorsModule = fx.Options(
	fx.Provide(
		ProvideSidecars,
		ProvideRecognizer,
		ProvideSynthesizer,
		ProvideTranslator,
		ProvideAdmission,
	),
)
