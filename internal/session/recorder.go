package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/voice-relay/internal/pairing"
)

const (
	writeTimeout = 2 * time.Second
	queueSize    = 256
)

type pairKey struct {
	customer string
	employee string
}

// Recorder persists pairing lifecycle events. Registry callbacks must not
// block, so writes go through a queue drained in order by one worker.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]pairKey
	queue  chan func(ctx context.Context)
	closed bool
	done   chan struct{}
}

func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger.With("component", "session_recorder"),
		active: make(map[string]pairKey),
		queue:  make(chan func(ctx context.Context), queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) Paired(info pairing.PairInfo) {
	key := pairKey{customer: info.CustomerID, employee: info.EmployeeID}
	rec := &Record{
		CustomerID:   info.CustomerID,
		EmployeeID:   info.EmployeeID,
		CustomerLang: info.CustomerLang,
		EmployeeLang: info.EmployeeLang,
		StartedAt:    r.store.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[info.CustomerID] = key
	r.active[info.EmployeeID] = key
	r.enqueueLocked(func(ctx context.Context) {
		if err := r.store.Start(ctx, rec); err != nil {
			r.logger.Warn("failed to record pairing", "error", err,
				"customer_id", rec.CustomerID, "employee_id", rec.EmployeeID)
		}
	})
}

func (r *Recorder) Unpaired(id, partnerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.active[id]
	if !ok {
		key, ok = r.active[partnerID]
	}
	if !ok {
		return
	}
	delete(r.active, key.customer)
	delete(r.active, key.employee)

	r.enqueueLocked(func(ctx context.Context) {
		rec, err := r.store.End(ctx, key.customer, key.employee)
		if err != nil {
			r.logger.Warn("failed to close pairing record", "error", err,
				"customer_id", key.customer, "employee_id", key.employee)
			return
		}
		r.logger.Debug("pairing ended",
			"customer_id", rec.CustomerID,
			"employee_id", rec.EmployeeID,
			"duration", rec.EndedAt.Sub(rec.StartedAt))
	})
}

func (r *Recorder) Occupancy(pairing.Occupancy) {}

// Flush blocks until every write queued before the call has finished.
func (r *Recorder) Flush() {
	flushed := make(chan struct{})
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.queue <- func(context.Context) { close(flushed) }
	r.mu.Unlock()
	<-flushed
}

// Close stops accepting events and waits for queued writes to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) enqueueLocked(fn func(ctx context.Context)) {
	if r.closed {
		return
	}
	select {
	case r.queue <- fn:
	default:
		r.logger.Warn("session write queue full, dropping event")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for fn := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		fn(ctx)
		cancel()
	}
}
