package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/voice-relay/internal/audio"
	"github.com/eleven-am/voice-relay/internal/metrics"
	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
)

const (
	defaultPreviewWindow = audio.SampleRate * 15
	defaultChatQueue     = 32
	defaultChatTimeout   = 30 * time.Second
)

type TextTranslator interface {
	Translate(ctx context.Context, text, source, target string) string
}

type Dependencies struct {
	Registry    *pairing.Registry
	Recognizer  transcription.Recognizer
	Translator  TextTranslator
	Synthesizer synthesis.Synthesizer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type EndpointConfig struct {
	Format        audio.SampleFormat
	InputRate     int
	Gain          float32
	Segmenter     audio.SegmenterConfig
	Scorer        audio.SpeechScorer
	Gate          transcription.GateConfig
	PreviewWindow int
	ChatQueue     int
	ChatTimeout   time.Duration
}

func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		Format:        audio.FormatF32LE,
		InputRate:     audio.SampleRate,
		Gain:          4.0,
		Segmenter:     audio.DefaultSegmenterConfig(),
		PreviewWindow: defaultPreviewWindow,
		ChatQueue:     defaultChatQueue,
		ChatTimeout:   defaultChatTimeout,
	}
}

func (c EndpointConfig) normalize() EndpointConfig {
	def := DefaultEndpointConfig()
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.InputRate <= 0 {
		c.InputRate = def.InputRate
	}
	if c.Gain <= 0 {
		c.Gain = def.Gain
	}
	if c.PreviewWindow <= 0 {
		c.PreviewWindow = def.PreviewWindow
	}
	if c.ChatQueue <= 0 {
		c.ChatQueue = def.ChatQueue
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = def.ChatTimeout
	}
	return c
}

type Endpoint struct {
	id      string
	role    pairing.Role
	ch      pairing.Channel
	deps    Dependencies
	cfg     EndpointConfig
	seg     *audio.Segmenter
	gate    *transcription.Gate
	lang    *languageState
	chat    chan string
	wg      sync.WaitGroup
	commits sync.WaitGroup
	logger  *slog.Logger
}

func NewEndpoint(id string, role pairing.Role, lang string, ch pairing.Channel, deps Dependencies, cfg EndpointConfig) *Endpoint {
	cfg = cfg.normalize()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "endpoint", "session_id", id, "role", role)
	if lang == "" {
		lang = pairing.DefaultLanguage
	}

	return &Endpoint{
		id:     id,
		role:   role,
		ch:     ch,
		deps:   deps,
		cfg:    cfg,
		seg:    audio.NewSegmenter(cfg.Segmenter, cfg.Scorer),
		gate:   transcription.NewGate(deps.Recognizer, cfg.Gate, deps.Metrics.GateHooks(), logger),
		lang:   newLanguageState(lang),
		chat:   make(chan string, cfg.ChatQueue),
		logger: logger,
	}
}

// Serve processes frames until src fails.
func (e *Endpoint) Serve(ctx context.Context, src FrameSource) error {
	if err := e.deps.Registry.Admit(e.role, e.id, e.ch, e.lang.declaredTag()); err != nil {
		return fmt.Errorf("admit %s: %w", e.id, err)
	}
	defer e.deps.Registry.ReleaseChannel(e.id, e.ch)

	e.wg.Add(1)
	go e.chatWorker(context.WithoutCancel(ctx))
	defer close(e.chat)

	for {
		frame, err := src.ReadFrame()
		if err != nil {
			e.logger.Info("connection closed", "reason", err)
			return nil
		}
		if frame.Binary {
			e.handleAudio(ctx, frame.Data)
			continue
		}
		e.handleText(ctx, frame.Data)
	}
}

func (e *Endpoint) Wait() {
	e.wg.Wait()
	e.commits.Wait()
	e.gate.Wait()
}

func (e *Endpoint) handleAudio(ctx context.Context, data []byte) {
	samples, err := e.cfg.Format.Decode(data)
	if err != nil {
		e.deps.Metrics.FrameDropped("misaligned")
		e.logger.Debug("dropping audio frame", "bytes", len(data), "error", err)
		return
	}
	if len(samples) == 0 {
		return
	}

	samples = audio.Resample(samples, e.cfg.InputRate, audio.SampleRate)
	audio.ApplyGain(samples, e.cfg.Gain)

	for _, utt := range e.seg.Push(samples) {
		e.commitAsync(ctx, utt)
	}

	if e.seg.Speaking() {
		hint, generation := e.lang.hint()
		e.gate.Preview(e.seg.Tail(e.cfg.PreviewWindow), hint, func(res transcription.Result) {
			e.lang.observe(generation, res.Language)
			e.send(TranscriptMessage{Type: TypePreview, Text: res.Text})
		})
	}
}

func (e *Endpoint) commitAsync(ctx context.Context, utt []float32) {
	hint, _ := e.lang.hint()
	e.lang.nextUtterance()
	e.deps.Metrics.Utterance(len(utt), audio.SampleRate)
	e.logger.Debug("utterance complete", "samples", len(utt), "language", hint)

	e.commits.Add(1)
	go func() {
		defer e.commits.Done()
		res := e.gate.Commit(context.WithoutCancel(ctx), utt, hint)
		if res.Text != "" {
			e.send(TranscriptMessage{Type: TypeCommit, Text: res.Text})
		}
	}()
}

func (e *Endpoint) handleText(ctx context.Context, data []byte) {
	msg := parseControl(data)

	switch msg.Type {
	case TypeStopRecording:
		e.stopRecording(ctx)
	case TypeLanguageChange:
		e.changeLanguage(msg.Lang)
	default:
		if msg.Text == nil || strings.TrimSpace(*msg.Text) == "" {
			return
		}
		select {
		case e.chat <- *msg.Text:
		default:
			e.logger.Warn("chat queue full, dropping message")
		}
	}
}

func (e *Endpoint) stopRecording(ctx context.Context) {
	utt := e.seg.Flush()
	if len(utt) == 0 {
		return
	}
	hint, _ := e.lang.hint()
	e.lang.nextUtterance()
	e.deps.Metrics.Utterance(len(utt), audio.SampleRate)

	res := e.gate.Commit(ctx, utt, hint)
	if res.Text != "" {
		e.send(TranscriptMessage{Type: TypeCommit, Text: res.Text})
	}
}

func (e *Endpoint) changeLanguage(lang string) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return
	}
	e.deps.Registry.SetLang(e.id, lang)
	e.lang.declare(lang)
	e.send(languageSwitched(lang))
}

func (e *Endpoint) chatWorker(ctx context.Context) {
	defer e.wg.Done()
	for text := range e.chat {
		e.relayChat(ctx, text)
	}
}

func (e *Endpoint) relayChat(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ChatTimeout)
	defer cancel()

	source := e.lang.source()
	target := e.deps.Registry.PartnerLang(e.id)
	if transcription.IsAuto(target) {
		target = pairing.DefaultLanguage
	}

	translated := text
	if e.deps.Translator != nil {
		translated = e.deps.Translator.Translate(ctx, text, source, target)
	}

	msg := ChatMessage{
		Sender:     e.id,
		Original:   text,
		Translated: translated,
		SrcLang:    source,
		TargetLang: target,
	}
	e.send(msg)
	e.deps.Registry.Relay(e.id, msg)

	if e.deps.Synthesizer == nil || strings.TrimSpace(translated) == "" {
		return
	}
	speech, err := e.deps.Synthesizer.Synthesize(ctx, synthesis.Request{Text: translated, Language: target})
	if err != nil {
		if !errors.Is(err, synthesis.ErrEmptyText) {
			e.deps.Metrics.CollaboratorFailed("synthesis")
			e.logger.Warn("synthesis failed", "language", target, "error", err)
		}
		return
	}
	if speech == nil || len(speech.Data) == 0 {
		return
	}

	am := AudioMessage{
		Type:    TypeAudio,
		Payload: base64.StdEncoding.EncodeToString(speech.Data),
		Sender:  e.id,
	}
	e.send(am)
	e.deps.Registry.Relay(e.id, am)
}

func (e *Endpoint) send(v any) {
	if err := e.ch.SendJSON(v); err != nil {
		e.logger.Debug("send to self failed, releasing", "error", err)
		e.deps.Registry.ReleaseChannel(e.id, e.ch)
	}
}
