// Package watch provides ready-made process.Watcher implementations.
//
// Every watcher embeds an Agent, which keeps the state delivered through
// the binding callbacks: the pid it is attached to, its last CPU share and
// its lifecycle state. The concrete types only decide what to bind to.
package watch

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ja7ad/procwatch/pkg/process"
	"github.com/ja7ad/procwatch/pkg/types"
)

var ErrNotBound = errors.New("watch: not bound to a process")

// LookupFunc fetches the current record of a pid, usually Controller.Lookup.
type LookupFunc func(pid int) (process.Record, error)

type Agent struct {
	name     string
	lookup   LookupFunc
	totalMem types.Bytes
	log      *slog.Logger

	mu    sync.RWMutex
	pid   int
	bound bool
	cpu   float64
	state process.State
}

type AgentOption func(*Agent)

// WithLookup lets Value and Percent read memory figures of the bound pid.
func WithLookup(fn LookupFunc) AgentOption {
	return func(a *Agent) { a.lookup = fn }
}

// WithTotalMemory sets the denominator of Percent.
func WithTotalMemory(total types.Bytes) AgentOption {
	return func(a *Agent) { a.totalMem = total }
}

func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.log = l }
}

func NewAgent(name string, opts ...AgentOption) *Agent {
	a := &Agent{name: name, log: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) OnBind(rec process.Record) {
	a.mu.Lock()
	a.pid, a.bound = rec.PID, true
	a.cpu, a.state = rec.CPU, rec.State
	a.mu.Unlock()
	a.log.Info("detected on pid", "watcher", a.name, "pid", rec.PID, "exe", rec.Identity.Exe)
}

func (a *Agent) OnUnbind() {
	a.mu.Lock()
	pid := a.pid
	a.pid, a.bound, a.cpu = 0, false, 0
	a.state = process.Dead
	a.mu.Unlock()
	a.log.Warn("not available", "watcher", a.name, "pid", pid)
}

func (a *Agent) OnCPUUpdate(percent float64) {
	a.mu.Lock()
	a.cpu = percent
	a.mu.Unlock()
}

func (a *Agent) OnStateChange(s process.State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// PID returns the pid the agent is bound to.
func (a *Agent) PID() (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pid, a.bound
}

// CPU is the last share of machine capacity reported for the bound pid.
func (a *Agent) CPU() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cpu
}

func (a *Agent) State() process.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Available reports whether the agent is bound to a process that can run.
func (a *Agent) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bound && a.state.Available()
}

// Value returns a memory figure of the bound process.
func (a *Agent) Value(f Field) (types.Bytes, error) {
	pid, ok := a.PID()
	if !ok || a.lookup == nil {
		return 0, ErrNotBound
	}
	rec, err := a.lookup(pid)
	if err != nil {
		return 0, err
	}
	return f.Of(rec), nil
}

// Percent returns Value as a percentage of total memory, 0 when the total
// is unknown.
func (a *Agent) Percent(f Field) (float64, error) {
	v, err := a.Value(f)
	if err != nil {
		return 0, err
	}
	return v.PercentOf(a.totalMem), nil
}
