package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observer(t *testing.T) {
	m := New()

	m.Paired(pairing.PairInfo{CustomerID: "c1", EmployeeID: "e1"})
	m.Occupancy(pairing.Occupancy{Connections: 3, Waiting: 1, Idle: 0, Pairs: 1})
	m.Unpaired("e1", "c1")

	if got := testutil.ToFloat64(m.PairsCreated); got != 1 {
		t.Errorf("pairs created = %v", got)
	}
	if got := testutil.ToFloat64(m.Connections); got != 3 {
		t.Errorf("connections = %v", got)
	}
	if got := testutil.ToFloat64(m.Waiting); got != 1 {
		t.Errorf("waiting = %v", got)
	}
	if got := testutil.CollectAndCount(m.PairDuration); got != 1 {
		t.Errorf("pair duration series = %d", got)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.paired) != 0 {
		t.Errorf("pair start times leaked: %v", m.paired)
	}
}

func TestMetrics_GateHooks(t *testing.T) {
	m := New()
	hooks := m.GateHooks()

	hooks.OnPreviewDropped("busy")
	hooks.OnPreviewDropped("busy")
	hooks.OnRecognition(transcription.KindCommit, 200*time.Millisecond, nil)
	hooks.OnRecognition(transcription.KindPreview, time.Millisecond, errors.New("x"))

	if got := testutil.ToFloat64(m.PreviewsDropped.WithLabelValues("busy")); got != 2 {
		t.Errorf("previews dropped = %v", got)
	}
	if got := testutil.ToFloat64(m.Recognitions.WithLabelValues("commit", "ok")); got != 1 {
		t.Errorf("commit ok = %v", got)
	}
	if got := testutil.ToFloat64(m.Recognitions.WithLabelValues("preview", "error")); got != 1 {
		t.Errorf("preview error = %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Paired(pairing.PairInfo{})
	m.Unpaired("a", "b")
	m.Occupancy(pairing.Occupancy{})
	m.Admission("customer", "ok")
	m.FrameDropped("misaligned")
	m.PreviewDropped("busy")
	m.Recognition(transcription.KindCommit, 0, nil)
	m.Utterance(16000, 16000)
	m.CollaboratorFailed("translation")

	hooks := m.GateHooks()
	if hooks.OnPreviewDropped != nil || hooks.OnRecognition != nil {
		t.Error("nil metrics should produce empty hooks")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.FrameDropped("misaligned")
	m.CollaboratorFailed("synthesis")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`voice_relay_audio_frames_dropped_total{reason="misaligned"} 1`,
		`voice_relay_collaborator_failures_total{collaborator="synthesis"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
