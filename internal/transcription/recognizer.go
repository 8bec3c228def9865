package transcription

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/eleven-am/voice-relay/internal/audio"
	"github.com/eleven-am/voice-relay/internal/sidecar"
	"google.golang.org/protobuf/types/known/structpb"
)

const TranscribeMethod = "/recognition.v1.Recognizer/Transcribe"

// Recognizer turns 16 kHz mono samples into text. An empty or unknown hint
// falls back to the configured default language.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, hint string) (text, detected string, err error)
}

type Invoker interface {
	Invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error)
}

type Client struct {
	sidecar Invoker
	langs   Languages
	logger  *slog.Logger
}

func NewClient(sc Invoker, langs Languages, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sidecar: sc,
		langs:   langs,
		logger:  logger.With("component", "recognizer"),
	}
}

func (c *Client) Transcribe(ctx context.Context, samples []float32, hint string) (string, string, error) {
	tag := c.langs.Resolve(hint)
	if len(samples) == 0 {
		return "", tag, nil
	}

	pcm := audio.Int16ToBytes(audio.Float32ToInt16(samples))
	resp, err := c.sidecar.Invoke(ctx, TranscribeMethod, map[string]any{
		"audio":        base64.StdEncoding.EncodeToString(pcm),
		"sample_rate":  audio.SampleRate,
		"language":     c.langs.Adapter(tag),
		"language_tag": tag,
	})
	if err != nil {
		return "", tag, err
	}

	detected := sidecar.String(resp, "language")
	if detected == "" {
		detected = tag
	}
	text := strings.TrimSpace(sidecar.String(resp, "text"))
	c.logger.Debug("transcribed", "language", tag, "detected", detected, "samples", len(samples), "chars", len(text))
	return text, detected, nil
}
