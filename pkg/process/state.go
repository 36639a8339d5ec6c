package process

import (
	"errors"
	"fmt"
	"strings"
)

// State is the scheduler state of a tracked process.
type State uint8

const (
	Undefined State = iota
	Running
	Sleeping
	Waiting // uninterruptible disk sleep
	Zombie
	Stopped
	TracingStop
	Paging
	Dead
	DeadCompat
	Wakekill
	Waking
	Parked
	Idle
)

var ErrUnknownState = errors.New("process: unknown state")

var stateInfo = [...]struct {
	name string
	code byte
}{
	Undefined:   {"undefined", 0},
	Running:     {"running", 'R'},
	Sleeping:    {"sleeping", 'S'},
	Waiting:     {"waiting", 'D'},
	Zombie:      {"zombie", 'Z'},
	Stopped:     {"stopped", 'T'},
	TracingStop: {"tracing-stop", 't'},
	Paging:      {"paging", 'W'},
	Dead:        {"dead", 'X'},
	DeadCompat:  {"dead-compat", 'x'},
	Wakekill:    {"wakekill", 'K'},
	Waking:      {"waking", 0},
	Parked:      {"parked", 'P'},
	Idle:        {"idle", 'I'},
}

// States lists every State value, Undefined first.
func States() []State {
	out := make([]State, len(stateInfo))
	for i := range stateInfo {
		out[i] = State(i)
	}
	return out
}

// StateFromCode decodes the single-character state of /proc/<pid>/stat.
// 'W' is reported as Paging; kernels that reused it for waking never
// expose that through stat. Unknown codes decode to Undefined.
func StateFromCode(c byte) State {
	switch c {
	case 'R':
		return Running
	case 'S':
		return Sleeping
	case 'D':
		return Waiting
	case 'Z':
		return Zombie
	case 'T':
		return Stopped
	case 't':
		return TracingStop
	case 'W':
		return Paging
	case 'X':
		return Dead
	case 'x':
		return DeadCompat
	case 'K':
		return Wakekill
	case 'P':
		return Parked
	case 'I':
		return Idle
	default:
		return Undefined
	}
}

// Code returns the kernel state character, or 0 for states without one.
func (s State) Code() byte {
	if int(s) < len(stateInfo) {
		return stateInfo[s].code
	}
	return 0
}

func (s State) String() string {
	if int(s) < len(stateInfo) {
		return stateInfo[s].name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Available reports whether a process in this state can still do work.
func (s State) Available() bool {
	switch s {
	case Dead, DeadCompat, Zombie, Stopped, Undefined:
		return false
	default:
		return true
	}
}

// ParseState accepts a state name ("sleeping", case-insensitive) or its
// single-character kernel code ("S", case-sensitive since 't' and 'T' differ).
func ParseState(s string) (State, error) {
	if len(s) == 1 {
		if st := StateFromCode(s[0]); st != Undefined {
			return st, nil
		}
	}
	name := strings.ToLower(strings.TrimSpace(s))
	for i, info := range stateInfo {
		if info.name == name {
			return State(i), nil
		}
	}
	return Undefined, fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// MustParseState is like ParseState but panics on error.
func MustParseState(s string) State {
	st, err := ParseState(s)
	if err != nil {
		panic(err)
	}
	return st
}
