package bootstrap

import (
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/voice-relay/internal/audio"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_ADDR", "STT_DEFAULT_LANGUAGE", "AUDIO_GAIN", "REQUIRE_APPROVAL", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.ServerAddr)
	}
	if cfg.STTDefaultLanguage != "kn" {
		t.Errorf("expected default recognition language kn, got %q", cfg.STTDefaultLanguage)
	}
	if cfg.AudioGain != 4.0 {
		t.Errorf("expected default gain 4.0, got %v", cfg.AudioGain)
	}
	if cfg.RequireApproval {
		t.Error("approval should be off by default")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("expected wildcard origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REQUIRE_APPROVAL", "true")
	t.Setenv("TRANSLATE_RPS", "2.5")
	t.Setenv("AUDIO_SAMPLE_FORMAT", "s16le")
	t.Setenv("VAD_SILENCE_TOLERANCE", "6")
	t.Setenv("PREVIEW_INTERVAL_MS", "250")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	if cfg.ServerAddr != ":9000" {
		t.Errorf("expected :9000, got %q", cfg.ServerAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if !cfg.RequireApproval {
		t.Error("expected approval required")
	}
	if cfg.TranslateRPS != 2.5 {
		t.Errorf("expected rps 2.5, got %v", cfg.TranslateRPS)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.RedisDB)
	}

	ec, err := cfg.EndpointConfig()
	if err != nil {
		t.Fatalf("endpoint config: %v", err)
	}
	if ec.Format != audio.FormatS16LE {
		t.Errorf("expected s16le, got %q", ec.Format)
	}
	if ec.Segmenter.SilenceTolerance != 6 {
		t.Errorf("expected tolerance 6, got %d", ec.Segmenter.SilenceTolerance)
	}
	if ec.Gate.PreviewInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms preview interval, got %v", ec.Gate.PreviewInterval)
	}
	if ec.Segmenter.WindowSize != audio.DefaultSegmenterConfig().WindowSize {
		t.Errorf("window size should keep its default, got %d", ec.Segmenter.WindowSize)
	}
}

func TestConfig_EndpointConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown format", cfg: Config{AudioSampleFormat: "mp3", AudioInputRate: 16000}},
		{name: "zero rate", cfg: Config{AudioSampleFormat: "f32le"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.EndpointConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected split: %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}
