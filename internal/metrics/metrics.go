package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_relay"

// Metrics holds the relay's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Connections prometheus.Gauge
	Waiting     prometheus.Gauge
	Idle        prometheus.Gauge
	Pairs       prometheus.Gauge

	PairsCreated  prometheus.Counter
	PairDuration  prometheus.Histogram
	Admissions    *prometheus.CounterVec
	FramesDropped *prometheus.CounterVec

	PreviewsDropped     *prometheus.CounterVec
	Recognitions        *prometheus.CounterVec
	RecognitionDuration *prometheus.HistogramVec
	UtteranceSeconds    prometheus.Histogram

	CollaboratorFailures *prometheus.CounterVec

	mu     sync.Mutex
	paired map[string]time.Time
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live participant connections",
		}),
		Waiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_customers",
			Help:      "Customers queued for an employee",
		}),
		Idle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_employees",
			Help:      "Employees available for assignment",
		}),
		Pairs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pairs",
			Help:      "Active customer/employee pairs",
		}),
		PairsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_created_total",
			Help:      "Pairs established",
		}),
		PairDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pair_duration_seconds",
			Help:      "Lifetime of customer/employee pairs",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
		Admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "WebSocket admission attempts by role and outcome",
		}, []string{"role", "outcome"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Inbound audio frames discarded",
		}, []string{"reason"}),
		PreviewsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "previews_dropped_total",
			Help:      "Preview requests dropped by the transcription gate",
		}, []string{"reason"}),
		Recognitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognitions_total",
			Help:      "Recognition calls by kind and outcome",
		}, []string{"kind", "outcome"}),
		RecognitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_duration_seconds",
			Help:      "Recognition call latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		UtteranceSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_seconds",
			Help:      "Audio length of committed utterances",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		CollaboratorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failed calls to translation and synthesis collaborators",
		}, []string{"collaborator"}),
		paired: make(map[string]time.Time),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Paired(info pairing.PairInfo) {
	if m == nil {
		return
	}
	m.PairsCreated.Inc()
	m.mu.Lock()
	m.paired[info.CustomerID] = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) Unpaired(id, partnerID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	started, ok := m.paired[id]
	if !ok {
		started, ok = m.paired[partnerID]
	}
	delete(m.paired, id)
	delete(m.paired, partnerID)
	m.mu.Unlock()

	if ok {
		m.PairDuration.Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) Occupancy(o pairing.Occupancy) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(o.Connections))
	m.Waiting.Set(float64(o.Waiting))
	m.Idle.Set(float64(o.Idle))
	m.Pairs.Set(float64(o.Pairs))
}

func (m *Metrics) Admission(role, outcome string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PreviewDropped(reason string) {
	if m == nil {
		return
	}
	m.PreviewsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Recognition(kind transcription.Kind, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Recognitions.WithLabelValues(string(kind), outcome).Inc()
	m.RecognitionDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) Utterance(samples, sampleRate int) {
	if m == nil || sampleRate <= 0 {
		return
	}
	m.UtteranceSeconds.Observe(float64(samples) / float64(sampleRate))
}

func (m *Metrics) CollaboratorFailed(name string) {
	if m == nil {
		return
	}
	m.CollaboratorFailures.WithLabelValues(name).Inc()
}

// GateHooks adapts the collectors to a transcription gate.
func (m *Metrics) GateHooks() transcription.GateHooks {
	if m == nil {
		return transcription.GateHooks{}
	}
	return transcription.GateHooks{
		OnPreviewDropped: m.PreviewDropped,
		OnRecognition:    m.Recognition,
	}
}
