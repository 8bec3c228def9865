package pairing

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Registry tracks live participants. Observers must not call back into it.
type Registry struct {
	mu       sync.Mutex
	dispatch sync.Mutex
	conns    map[string]*Connection
	pairs    map[string]string
	waiting  []waitingEntry
	idle     []string
	observer Observer
	pending  []func(Observer)
	log      *slog.Logger
}

func NewRegistry(observer Observer, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		conns:    make(map[string]*Connection),
		pairs:    make(map[string]string),
		observer: observer,
		log:      log.With("component", "pairing_registry"),
	}
}

func (r *Registry) Admit(role Role, id string, ch Channel, lang string) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyParticipant
	}
	if lang == "" {
		lang = DefaultLanguage
	}

	r.mu.Lock()
	defer r.unlock()

	if _, exists := r.conns[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, id)
	}

	r.conns[id] = &Connection{
		ID:          id,
		Role:        role,
		Lang:        lang,
		Channel:     ch,
		ConnectedAt: time.Now(),
	}

	switch role {
	case RoleEmployee:
		r.log.Info("employee connected", "id", id, "lang", lang)
		r.idle = append(r.idle, id)
		r.serveWaitingLocked(id)
	case RoleCustomer:
		r.log.Info("customer connected", "id", id, "lang", lang)
		if len(r.idle) > 0 {
			employee := r.idle[0]
			r.idle = r.idle[1:]
			r.matchLocked(id, employee)
			break
		}
		r.waiting = append(r.waiting, waitingEntry{id: id, ch: ch, lang: lang})
		if err := ch.SendJSON(SystemMessage{System: msgQueued}); err != nil {
			r.log.Warn("queued customer unreachable", "id", id, "error", err)
			r.releaseLocked(id)
		}
	}
	return nil
}

// serveWaitingLocked matches at most one waiting customer.
func (r *Registry) serveWaitingLocked(employee string) {
	if len(r.waiting) == 0 || !slices.Contains(r.idle, employee) {
		return
	}
	head := r.waiting[0]
	r.waiting = r.waiting[1:]
	r.removeIdleLocked(employee)
	r.matchLocked(head.id, employee)
}

func (r *Registry) matchLocked(customer, employee string) {
	r.removeWaitingLocked(customer)
	r.removeIdleLocked(employee)

	r.pairs[customer] = employee
	r.pairs[employee] = customer

	info := PairInfo{CustomerID: customer, EmployeeID: employee}
	if c, ok := r.conns[customer]; ok {
		info.CustomerLang = c.Lang
	}
	if e, ok := r.conns[employee]; ok {
		info.EmployeeLang = e.Lang
	}
	r.emit(func(o Observer) { o.Paired(info) })
	r.log.Info("participants matched", "customer", customer, "employee", employee)

	if !r.notifyLocked(customer, fmt.Sprintf(msgConnectedAgent, employee)) {
		r.log.Warn("waiting customer unreachable, abandoning match", "customer", customer)
		delete(r.pairs, customer)
		delete(r.pairs, employee)
		r.emit(func(o Observer) { o.Unpaired(customer, employee) })
		r.releaseLocked(customer)
		if _, ok := r.conns[employee]; ok {
			r.idle = append([]string{employee}, r.idle...)
			r.serveWaitingLocked(employee)
		}
		return
	}
	if !r.notifyLocked(employee, fmt.Sprintf(msgConnectedCustom, customer)) {
		r.log.Warn("employee unreachable during match", "employee", employee)
		r.releaseLocked(employee)
	}
}

func (r *Registry) notifyLocked(id, text string) bool {
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	if err := conn.Channel.SendJSON(SystemMessage{System: text}); err != nil {
		r.log.Debug("notify failed", "id", id, "error", err)
		return false
	}
	return true
}

func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.unlock()
	r.releaseLocked(id)
}

// ReleaseChannel releases id only while ch is still its registered channel.
func (r *Registry) ReleaseChannel(id string, ch Channel) {
	r.mu.Lock()
	defer r.unlock()
	if conn, ok := r.conns[id]; !ok || conn.Channel != ch {
		return
	}
	r.releaseLocked(id)
}

func (r *Registry) releaseLocked(id string) {
	conn, known := r.conns[id]
	if known {
		delete(r.conns, id)
		if err := conn.Channel.Close(); err != nil {
			r.log.Debug("close channel", "id", id, "error", err)
		}
		r.log.Info("participant released", "id", id, "role", conn.Role)
	}

	r.removeIdleLocked(id)
	r.removeWaitingLocked(id)

	partner, paired := r.pairs[id]
	if !paired {
		return
	}
	delete(r.pairs, id)
	if r.pairs[partner] == id {
		delete(r.pairs, partner)
	}
	r.emit(func(o Observer) { o.Unpaired(id, partner) })

	pconn, ok := r.conns[partner]
	if !ok {
		return
	}
	if err := pconn.Channel.SendJSON(SystemMessage{System: msgPartnerLeft}); err != nil {
		r.log.Warn("surviving partner unreachable", "id", partner, "error", err)
		r.releaseLocked(partner)
		return
	}
	if pconn.Role == RoleEmployee && !slices.Contains(r.idle, partner) {
		r.idle = append(r.idle, partner)
		r.log.Info("employee available again", "id", partner)
		r.serveWaitingLocked(partner)
	}
}

func (r *Registry) Relay(from string, payload any) {
	r.mu.Lock()
	defer r.unlock()

	partner, ok := r.pairs[from]
	if !ok {
		return
	}
	conn, ok := r.conns[partner]
	if !ok {
		return
	}
	if err := conn.Channel.SendJSON(payload); err != nil {
		r.log.Warn("relay failed, releasing partner", "from", from, "to", partner, "error", err)
		r.releaseLocked(partner)
	}
}

func (r *Registry) LookupPartner(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.pairs[id]
	return partner, ok
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) Lang(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return conn.Lang, true
}

func (r *Registry) SetLang(id, lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.Lang = lang
		r.log.Info("language switched", "id", id, "lang", lang)
	}
}

func (r *Registry) PartnerLang(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.pairs[id]
	if !ok {
		return DefaultLanguage
	}
	if conn, ok := r.conns[partner]; ok && conn.Lang != "" {
		return conn.Lang
	}
	return DefaultLanguage
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Waiting: make([]string, 0, len(r.waiting)),
		Idle:    slices.Clone(r.idle),
		Pairs:   make(map[string]string, len(r.pairs)/2),
		Total:   len(r.conns),
	}
	for _, w := range r.waiting {
		snap.Waiting = append(snap.Waiting, w.id)
	}
	for a, b := range r.pairs {
		if conn, ok := r.conns[a]; ok && conn.Role == RoleCustomer {
			snap.Pairs[a] = b
		}
	}
	return snap
}

func (r *Registry) removeIdleLocked(id string) {
	r.idle = slices.DeleteFunc(r.idle, func(e string) bool { return e == id })
}

func (r *Registry) removeWaitingLocked(id string) {
	r.waiting = slices.DeleteFunc(r.waiting, func(w waitingEntry) bool { return w.id == id })
}

func (r *Registry) occupancyLocked() Occupancy {
	return Occupancy{
		Connections: len(r.conns),
		Waiting:     len(r.waiting),
		Idle:        len(r.idle),
		Pairs:       len(r.pairs) / 2,
	}
}

func (r *Registry) emit(fn func(Observer)) {
	if r.observer == nil {
		return
	}
	r.pending = append(r.pending, fn)
}

// unlock delivers events queued during the critical section. dispatch is
// taken before mu is released so deliveries keep critical-section order.
func (r *Registry) unlock() {
	if r.observer == nil {
		r.mu.Unlock()
		return
	}
	occ := r.occupancyLocked()
	events := append(r.pending, func(o Observer) { o.Occupancy(occ) })
	r.pending = nil

	r.dispatch.Lock()
	defer r.dispatch.Unlock()
	r.mu.Unlock()

	for _, fn := range events {
		fn(r.observer)
	}
}
