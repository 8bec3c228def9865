package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/shared"
)

func newTestRecorder(t *testing.T) (*Recorder, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	rec := NewRecorder(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rec.Close)
	return rec, store
}

func TestRecorder_PairLifecycle(t *testing.T) {
	rec, store := newTestRecorder(t)
	ctx := context.Background()

	rec.Paired(pairing.PairInfo{CustomerID: "c1", EmployeeID: "e1", CustomerLang: "ta", EmployeeLang: "en"})
	rec.Flush()

	got, err := store.Get(ctx, "c1", "e1")
	if err != nil {
		t.Fatalf("expected record after pairing: %v", err)
	}
	if got.CustomerLang != "ta" || !got.EndedAt.IsZero() {
		t.Errorf("unexpected record: %+v", got)
	}

	// either side may be the one released
	rec.Unpaired("e1", "c1")
	rec.Flush()

	got, _ = store.Get(ctx, "c1", "e1")
	if got.EndedAt.IsZero() {
		t.Error("expected record to be ended")
	}
}

func TestRecorder_UnknownUnpairIgnored(t *testing.T) {
	rec, store := newTestRecorder(t)

	rec.Unpaired("x", "y")
	rec.Flush()

	if _, err := store.Get(context.Background(), "x", "y"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected no record, got %v", err)
	}
}

func TestRecorder_OrderPreserved(t *testing.T) {
	rec, store := newTestRecorder(t)

	for range 20 {
		rec.Paired(pairing.PairInfo{CustomerID: "c1", EmployeeID: "e1"})
		rec.Unpaired("c1", "e1")
	}
	rec.Flush()

	stats, err := store.DailyStats(context.Background(), 1)
	if err != nil || len(stats) != 1 {
		t.Fatalf("expected stats, got %v %v", stats, err)
	}
	if stats[0].Pairings != 20 || stats[0].Completed != 20 {
		t.Errorf("expected every pairing to start and end, got %+v", stats[0])
	}
}

func TestRecorder_CloseDropsLateEvents(t *testing.T) {
	store, _ := newTestStore(t)
	rec := NewRecorder(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec.Close()

	rec.Paired(pairing.PairInfo{CustomerID: "c1", EmployeeID: "e1"})
	rec.Flush()
	rec.Close()

	if _, err := store.Get(context.Background(), "c1", "e1"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("events after close should be dropped, got %v", err)
	}
}

func TestRecorder_ImplementsObserver(t *testing.T) {
	var _ pairing.Observer = (*Recorder)(nil)
}
