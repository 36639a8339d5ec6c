package process

import (
	"log/slog"
	"slices"
	"sync"
)

// Table is the registry of live processes and the watcher binding relation.
//
// Mutations are serialised by writeMu. Each one changes the data under mu,
// releases mu and only then runs the watcher callbacks it collected, still
// holding writeMu. Callbacks can therefore read the table (Find, Count,
// Records) and always observe the mutation that triggered them.
type Table struct {
	writeMu sync.Mutex
	mu      sync.RWMutex

	records map[int]*Record
	gen     uint64

	watchers []Watcher // registration order
	bound    map[Watcher]int
	boundBy  map[int]Watcher

	resolve Resolver
	log     *slog.Logger
}

type Option func(*Table)

// WithResolver replaces ResolveIdentity, mostly for tests.
func WithResolver(r Resolver) Option {
	return func(t *Table) { t.resolve = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.log = l }
}

func NewTable(opts ...Option) *Table {
	t := &Table{
		records: make(map[int]*Record),
		bound:   make(map[Watcher]int),
		boundBy: make(map[int]Watcher),
		resolve: ResolveIdentity,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// batch holds the callbacks of one mutation and the records to erase
// once those callbacks ran.
type batch struct {
	notes  []func()
	doomed []*Record
}

// commit runs with writeMu held and mu released.
func (t *Table) commit(b *batch) {
	for _, fn := range b.notes {
		fn()
	}
	if len(b.doomed) == 0 {
		return
	}
	t.mu.Lock()
	for _, rec := range b.doomed {
		if t.records[rec.PID] == rec {
			delete(t.records, rec.PID)
		}
	}
	t.mu.Unlock()
}

//
// Queries
//

// Find returns a snapshot of the record for pid.
func (t *Table) Find(pid int) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[pid]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Count returns the number of records in state s.
func (t *Table) Count(s State) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.records {
		if rec.State == s {
			n++
		}
	}
	return n
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Records returns snapshots of every record ordered by pid.
func (t *Table) Records() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	t.mu.RUnlock()
	slices.SortFunc(out, func(a, b Record) int { return a.PID - b.PID })
	return out
}

// PIDs returns references to every record ordered by pid.
func (t *Table) PIDs() []Ref {
	t.mu.RLock()
	out := make([]Ref, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.ref())
	}
	t.mu.RUnlock()
	slices.SortFunc(out, func(a, b Ref) int { return a.PID - b.PID })
	return out
}

// BoundTo reports the pid w is currently bound to.
func (t *Table) BoundTo(w Watcher) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pid, ok := t.bound[w]
	return pid, ok
}

//
// Mutations
//

// Insert starts tracking pid and binds the first registered watcher that
// is unbound and probes true. It is a no-op if pid is already tracked.
func (t *Table) Insert(pid int) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.insert(pid)
}

// Remove marks the record Dead, notifies and unbinds its watcher and
// erases it. A Find issued from OnUnbind still sees the Dead record.
func (t *Table) Remove(pid int) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// records is only written under writeMu, reading it here is safe.
	rec, ok := t.records[pid]
	if !ok {
		return false
	}
	var b batch
	t.mu.Lock()
	t.kill(rec, &b)
	t.mu.Unlock()
	t.commit(&b)
	return true
}

// Exec handles a process that replaced its program image. An untracked
// pid is inserted. A tracked pid whose identity changed is removed and
// tracked afresh so watchers probe the new executable. It reports whether
// a new record was created.
func (t *Table) Exec(pid int) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	rec, ok := t.records[pid]
	if !ok {
		return t.insert(pid)
	}
	if t.resolve(pid) == rec.Identity {
		return false
	}
	var b batch
	t.mu.Lock()
	t.kill(rec, &b)
	t.mu.Unlock()
	t.commit(&b)
	return t.insert(pid)
}

// Sync reconciles the table with a full enumeration of live pids: pids
// missing from the table are inserted, records missing from pids are
// removed. Records present on both sides are left untouched.
func (t *Table) Sync(pids []int) (added, removed []int) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	live := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		live[pid] = struct{}{}
	}

	var b batch
	t.mu.Lock()
	for pid, rec := range t.records {
		if _, ok := live[pid]; !ok {
			t.kill(rec, &b)
			removed = append(removed, pid)
		}
	}
	t.mu.Unlock()
	t.commit(&b)

	for _, pid := range pids {
		if t.insert(pid) {
			added = append(added, pid)
		}
	}
	slices.Sort(removed)
	return added, removed
}

// insert runs with writeMu held.
func (t *Table) insert(pid int) bool {
	if _, ok := t.records[pid]; ok {
		return false
	}

	// Identity and probes run without mu so they may read the table.
	id := t.resolve(pid)
	var w Watcher
	for _, c := range t.watchers {
		if _, busy := t.bound[c]; busy {
			continue
		}
		if c.Probe(id) {
			w = c
			break
		}
	}

	t.mu.Lock()
	t.gen++
	rec := &Record{PID: pid, Gen: t.gen, Identity: id, State: Undefined}
	t.records[pid] = rec
	if w != nil {
		t.bind(w, rec)
	}
	snap := *rec
	t.mu.Unlock()

	if w != nil {
		t.log.Debug("watcher bound", "pid", pid, "exe", id.Exe)
		w.OnBind(snap)
	}
	return true
}

// kill runs with writeMu and mu held.
func (t *Table) kill(rec *Record, b *batch) {
	prev := rec.State
	rec.State = Dead
	rec.removed = true
	if w, ok := t.boundBy[rec.PID]; ok {
		t.unbind(w, rec.PID)
		if so, ok := w.(StateObserver); ok && prev != Dead {
			b.notes = append(b.notes, func() { so.OnStateChange(Dead) })
		}
		b.notes = append(b.notes, w.OnUnbind)
	}
	b.doomed = append(b.doomed, rec)
}

func (t *Table) bind(w Watcher, rec *Record) {
	t.bound[w] = rec.PID
	t.boundBy[rec.PID] = w
}

func (t *Table) unbind(w Watcher, pid int) {
	delete(t.bound, w)
	delete(t.boundBy, pid)
}

//
// Watcher registration
//

// Watch registers w and immediately tries to bind it to an existing record,
// in pid order. It reports whether w got bound.
func (t *Table) Watch(w Watcher) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if slices.Contains(t.watchers, w) {
		_, ok := t.bound[w]
		return ok
	}

	var target *Record
	for _, ref := range t.sortedRefs() {
		if _, busy := t.boundBy[ref.PID]; busy {
			continue
		}
		rec := t.records[ref.PID]
		if w.Probe(rec.Identity) {
			target = rec
			break
		}
	}

	t.mu.Lock()
	t.watchers = append(t.watchers, w)
	var snap Record
	if target != nil {
		t.bind(w, target)
		snap = *target
	}
	t.mu.Unlock()

	if target == nil {
		return false
	}
	t.log.Debug("watcher bound", "pid", snap.PID, "exe", snap.Identity.Exe)
	w.OnBind(snap)
	return true
}

// Unwatch deregisters w, calling OnUnbind if it was bound.
func (t *Table) Unwatch(w Watcher) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	i := slices.Index(t.watchers, w)
	if i < 0 {
		return
	}
	t.mu.Lock()
	t.watchers = slices.Delete(t.watchers, i, i+1)
	pid, wasBound := t.bound[w]
	if wasBound {
		t.unbind(w, pid)
	}
	t.mu.Unlock()

	if wasBound {
		w.OnUnbind()
	}
}

// sortedRefs runs with writeMu held.
func (t *Table) sortedRefs() []Ref {
	out := make([]Ref, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.ref())
	}
	slices.SortFunc(out, func(a, b Ref) int { return a.PID - b.PID })
	return out
}
