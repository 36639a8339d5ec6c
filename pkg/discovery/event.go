// Package discovery tells the controller which processes come and go.
//
// Two strategies exist. An EventSource subscribes to the kernel proc
// connector and delivers events as they happen. A Scanner enumerates
// /proc and diffs the result against the table; it seeds the table at
// startup and replaces the EventSource when the connector is unavailable.
package discovery

import "fmt"

type Kind uint8

const (
	// Appeared is a new process (fork of a new thread group).
	Appeared Kind = iota + 1
	// Execed is a process that replaced its program image.
	Execed
	// Disappeared is the exit of a thread group leader.
	Disappeared
	// Resync means events were lost and the table must be rebuilt from a
	// scan. PID is zero.
	Resync
)

func (k Kind) String() string {
	switch k {
	case Appeared:
		return "appeared"
	case Execed:
		return "execed"
	case Disappeared:
		return "disappeared"
	case Resync:
		return "resync"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type Event struct {
	Kind Kind
	PID  int
}

// Source delivers process events until closed. The channel returned by
// Events is closed once the source stops.
type Source interface {
	Events() <-chan Event
	Close() error
}
