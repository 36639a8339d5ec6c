package process

import "path/filepath"

// Identity is what a Watcher probes against. It is resolved once when
// the record is inserted.
type Identity struct {
	PID    int
	Exe    string // absolute executable path, or "pid<N>" when unresolvable
	Cgroup string
}

// Name is the base name of Exe.
func (id Identity) Name() string { return filepath.Base(id.Exe) }

// Resolver builds the Identity of a pid. It must not block for long and
// must not fail; missing pieces are left empty or use placeholders.
type Resolver func(pid int) Identity
