package process

// Watcher is bound to at most one record at a time.
//
// Callbacks run synchronously on the goroutine that mutated the table.
// They may call Find, Count, Len and Records but must not mutate the
// table, and must not block. Implementations are used as map keys, so
// they must be comparable (pointer receivers in practice).
type Watcher interface {
	// Probe reports whether the watcher wants the process.
	Probe(id Identity) bool
	OnBind(rec Record)
	OnUnbind()
	OnCPUUpdate(percent float64)
}

// StateObserver is optionally implemented by a Watcher that wants
// lifecycle state changes of its bound record, including the final Dead.
type StateObserver interface {
	OnStateChange(s State)
}
