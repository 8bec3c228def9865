package synthesis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eleven-am/voice-relay/internal/sidecar"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SynthesizeMethod = "/synthesis.v1.Synthesizer/Synthesize"
	defaultFormat    = "mp3"
)

var ErrEmptyText = errors.New("nothing to synthesize")

type Request struct {
	Text     string
	Language string
	VoiceID  string
	Speed    float32
	Format   string
}

type Audio struct {
	Data       []byte
	Format     string
	SampleRate uint32
}

// Synthesizer renders text as speech. A nil Audio with a nil error means the
// sidecar had nothing to say for the request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

type Invoker interface {
	Invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error)
}

type Client struct {
	sidecar Invoker
	voice   string
	logger  *slog.Logger
}

func NewClient(sc Invoker, defaultVoice string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sidecar: sc,
		voice:   defaultVoice,
		logger:  logger.With("component", "synthesizer"),
	}
}

func (c *Client) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if req.Format == "" {
		req.Format = defaultFormat
	}
	if req.VoiceID == "" {
		req.VoiceID = c.voice
	}
	if req.Speed <= 0 {
		req.Speed = 1
	}

	resp, err := c.sidecar.Invoke(ctx, SynthesizeMethod, map[string]any{
		"text":     req.Text,
		"language": req.Language,
		"voice_id": req.VoiceID,
		"speed":    float64(req.Speed),
		"format":   req.Format,
	})
	if err != nil {
		return nil, err
	}

	encoded := sidecar.String(resp, "audio")
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	format := sidecar.String(resp, "format")
	if format == "" {
		format = req.Format
	}
	c.logger.Debug("synthesized", "language", req.Language, "bytes", len(data), "format", format)

	return &Audio{
		Data:       data,
		Format:     format,
		SampleRate: uint32(sidecar.Number(resp, "sample_rate")),
	}, nil
}
