package process

import (
	"time"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Record is one tracked process. Values handed out by the Table are
// snapshots; mutating them does not affect the registry.
type Record struct {
	PID      int
	Gen      uint64 // distinguishes reuses of the same pid
	Identity Identity
	State    State
	PPID     int

	LastTicks uint64  // utime+stime at the last sample, 0 before the first
	CPU       float64 // share of total machine capacity, 0..1

	RSS    types.Bytes
	VSize  types.Bytes
	Shared types.Bytes

	Updated time.Time

	removed bool // killed, erased once callbacks ran
}

// Ref names a specific incarnation of a pid.
type Ref struct {
	PID int
	Gen uint64
}

func (r *Record) ref() Ref { return Ref{PID: r.PID, Gen: r.Gen} }
