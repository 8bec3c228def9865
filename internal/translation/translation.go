package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://translation.googleapis.com/language/translate/v2"
	translateScope  = "https://www.googleapis.com/auth/cloud-translation"
	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 4 * 1024
)

var ErrNoTranslation = errors.New("translation response carried no text")

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type Config struct {
	APIKey   string
	Endpoint string
	RPS      float64
	Timeout  time.Duration
}

// GoogleClient calls the Cloud Translation v2 REST API. Without an API key it
// authenticates with application default credentials.
type GoogleClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewGoogleClient(ctx context.Context, cfg Config) (*GoogleClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var hc *http.Client
	if cfg.APIKey != "" {
		hc = &http.Client{Timeout: timeout}
	} else {
		var err error
		hc, err = google.DefaultClient(ctx, translateScope)
		if err != nil {
			return nil, fmt.Errorf("google credentials: %w", err)
		}
		hc.Timeout = timeout
	}

	return newGoogleClient(cfg, hc), nil
}

func newGoogleClient(cfg Config, hc *http.Client) *GoogleClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return &GoogleClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

func (c *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	body := translateRequest{Q: []string{text}, Target: target, Format: "text"}
	if source != "" && source != "auto" {
		body.Source = source
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.endpoint
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("translate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data.Translations) == 0 {
		return "", ErrNoTranslation
	}
	return out.Data.Translations[0].TranslatedText, nil
}

type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// Service wraps a Translator so callers never see an error: identical
// languages skip the backend and failures fall back to the original text.
type Service struct {
	backend   Translator
	onFailure func(error)
	logger    *slog.Logger
}

func NewService(backend Translator, onFailure func(error), logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = Passthrough{}
	}
	return &Service{
		backend:   backend,
		onFailure: onFailure,
		logger:    logger.With("component", "translator"),
	}
}

func (s *Service) Translate(ctx context.Context, text, source, target string) string {
	if text == "" {
		return ""
	}
	if sameLanguage(source, target) {
		return text
	}

	out, err := s.backend.Translate(ctx, text, source, target)
	if err != nil {
		s.logger.Warn("translation failed, using original text", "source", source, "target", target, "error", err)
		if s.onFailure != nil {
			s.onFailure(err)
		}
		return text
	}
	return out
}

func sameLanguage(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
