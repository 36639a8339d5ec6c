package process

import (
	"time"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Sample is the outcome of one accounting pass for one record.
type Sample struct {
	State  State
	Ticks  uint64
	CPU    float64
	PPID   int
	RSS    types.Bytes
	VSize  types.Bytes
	Shared types.Bytes
	At     time.Time
}

// Tx is a view of the table inside Update. It is only valid during the
// callback.
type Tx struct {
	t *Table
	b *batch
}

func (tx *Tx) lookup(ref Ref) *Record {
	rec, ok := tx.t.records[ref.PID]
	if !ok || rec.Gen != ref.Gen || rec.removed {
		return nil
	}
	return rec
}

// Refs lists the live records ordered by pid.
func (tx *Tx) Refs() []Ref {
	out := make([]Ref, 0, len(tx.t.records))
	for _, ref := range tx.t.sortedRefs() {
		if !tx.t.records[ref.PID].removed {
			out = append(out, ref)
		}
	}
	return out
}

// LastTicks returns the tick baseline of ref, false if ref is gone or
// was replaced by a newer process with the same pid.
func (tx *Tx) LastTicks(ref Ref) (uint64, bool) {
	rec := tx.lookup(ref)
	if rec == nil {
		return 0, false
	}
	return rec.LastTicks, true
}

// Apply stores s into ref. The bound watcher, if any, gets OnStateChange
// when the state differs and OnCPUUpdate in any case.
func (tx *Tx) Apply(ref Ref, s Sample) bool {
	rec := tx.lookup(ref)
	if rec == nil {
		return false
	}
	changed := rec.State != s.State
	rec.State = s.State
	rec.LastTicks = s.Ticks
	rec.CPU = s.CPU
	rec.PPID = s.PPID
	rec.RSS = s.RSS
	rec.VSize = s.VSize
	rec.Shared = s.Shared
	rec.Updated = s.At

	if w, ok := tx.t.boundBy[rec.PID]; ok {
		if so, ok := w.(StateObserver); ok && changed {
			st := s.State
			tx.b.notes = append(tx.b.notes, func() { so.OnStateChange(st) })
		}
		cpu := s.CPU
		tx.b.notes = append(tx.b.notes, func() { w.OnCPUUpdate(cpu) })
	}
	return true
}

// Remove drops ref exactly like Table.Remove, once the callback returns.
func (tx *Tx) Remove(ref Ref) bool {
	rec := tx.lookup(ref)
	if rec == nil {
		return false
	}
	tx.t.kill(rec, tx.b)
	return true
}

// Update runs fn with exclusive access to the records, then delivers the
// watcher notifications fn produced. Every change made by fn becomes
// visible to readers at once.
//
// fn runs with the table locked: it must use the Tx and never call Table
// methods (Find, PIDs, Records, ...), which would deadlock.
func (t *Table) Update(fn func(tx *Tx)) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var b batch
	func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		fn(&Tx{t: t, b: &b})
	}()
	t.commit(&b)
}
