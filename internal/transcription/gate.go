package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPreviewInterval = 500 * time.Millisecond
	defaultCallTimeout     = 60 * time.Second
)

type Kind string

const (
	KindPreview Kind = "preview"
	KindCommit  Kind = "commit"
)

type Result struct {
	ID       string
	Kind     Kind
	Text     string
	Language string
	Samples  int
	Elapsed  time.Duration
}

type GateConfig struct {
	PreviewInterval time.Duration
	CallTimeout     time.Duration
}

type GateHooks struct {
	OnPreviewDropped func(reason string)
	OnRecognition    func(kind Kind, elapsed time.Duration, err error)
}

// Gate serializes recognition for one connection. Previews are dropped while
// another call holds the gate; commits wait for it.
type Gate struct {
	rec      Recognizer
	mu       sync.Mutex
	tmu      sync.Mutex
	last     time.Time
	interval time.Duration
	timeout  time.Duration
	hooks    GateHooks
	now      func() time.Time
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewGate(rec Recognizer, cfg GateConfig, hooks GateHooks, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewInterval <= 0 {
		cfg.PreviewInterval = DefaultPreviewInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Gate{
		rec:      rec,
		interval: cfg.PreviewInterval,
		timeout:  cfg.CallTimeout,
		hooks:    hooks,
		now:      time.Now,
		logger:   logger.With("component", "transcription_gate"),
	}
}

// Preview starts a background recognition of samples unless one was
// attempted within the preview interval or the gate is busy. deliver is
// called only for non-empty transcripts, after the gate is released.
func (g *Gate) Preview(samples []float32, hint string, deliver func(Result)) bool {
	g.tmu.Lock()
	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		g.tmu.Unlock()
		g.dropped("throttled")
		return false
	}
	if !g.mu.TryLock() {
		g.tmu.Unlock()
		g.dropped("busy")
		return false
	}
	g.last = now
	g.tmu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		res := g.run(context.Background(), KindPreview, samples, hint)
		g.mu.Unlock()
		if res.Text != "" && deliver != nil {
			deliver(res)
		}
	}()
	return true
}

// Commit waits for the gate and recognizes samples. Failures yield a Result
// with empty Text.
func (g *Gate) Commit(ctx context.Context, samples []float32, hint string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.run(ctx, KindCommit, samples, hint)
}

// Wait blocks until in-flight previews have finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) run(ctx context.Context, kind Kind, samples []float32, hint string) (res Result) {
	res = Result{ID: uuid.NewString(), Kind: kind, Samples: len(samples)}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("recognizer panic: %v", r)
			g.logger.Error("recognition failed", "kind", kind, "id", res.ID, "error", err)
			res.Text, res.Language = "", ""
			g.recognized(kind, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, detected, err := g.rec.Transcribe(ctx, samples, hint)
	res.Elapsed = time.Since(start)
	g.recognized(kind, res.Elapsed, err)
	if err != nil {
		g.logger.Warn("recognition failed", "kind", kind, "id", res.ID, "samples", len(samples), "error", err)
		return res
	}

	res.Text = text
	res.Language = detected
	g.logger.Debug("recognition finished", "kind", kind, "id", res.ID, "elapsed", res.Elapsed, "language", detected)
	return res
}

func (g *Gate) dropped(reason string) {
	if g.hooks.OnPreviewDropped != nil {
		g.hooks.OnPreviewDropped(reason)
	}
}

func (g *Gate) recognized(kind Kind, elapsed time.Duration, err error) {
	if g.hooks.OnRecognition != nil {
		g.hooks.OnRecognition(kind, elapsed, err)
	}
}
