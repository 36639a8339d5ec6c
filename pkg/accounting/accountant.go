// Package accounting turns successive kernel tick counters into CPU usage.
//
// The system-wide fraction comes from the aggregate /proc/stat line. It is
// then allocated to processes by their share of the ticks consumed since the
// previous pass, so per-process values always add up to at most the system
// fraction.
package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"oss.indeed.com/go/libtime"

	"github.com/ja7ad/procwatch/pkg/process"
	"github.com/ja7ad/procwatch/pkg/system/proc"
	"github.com/ja7ad/procwatch/pkg/system/util"
	"github.com/ja7ad/procwatch/pkg/types"
)

const tracerName = "github.com/ja7ad/procwatch/pkg/accounting"

// Usage is the system-wide CPU fraction of the last pass.
type Usage struct {
	Fraction float64 // 0..1
	At       time.Time
}

type Accountant struct {
	table      *process.Table
	sampler    Sampler
	perProcess bool

	clock  libtime.Clock
	tracer trace.Tracer
	log    *slog.Logger

	pass sync.Mutex // one refresh at a time

	mu       sync.Mutex
	prev     proc.CPUSample
	havePrev bool
	usage    Usage
}

type Option func(*Accountant)

// GlobalOnly disables per-process accounting; only the system fraction is
// computed.
func GlobalOnly() Option {
	return func(a *Accountant) { a.perProcess = false }
}

func WithClock(c libtime.Clock) Option {
	return func(a *Accountant) { a.clock = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Accountant) { a.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Accountant) { a.log = l }
}

func New(table *process.Table, sampler Sampler, opts ...Option) *Accountant {
	a := &Accountant{
		table:      table,
		sampler:    sampler,
		perProcess: true,
		clock:      libtime.SystemClock(),
		tracer:     otel.Tracer(tracerName),
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Usage returns the system fraction computed by the last pass.
func (a *Accountant) Usage() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

type sampled struct {
	ref  process.Ref
	stat proc.Stat
	err  error
}

// Refresh runs one accounting pass. The first pass only records the global
// baseline. An error means the global counters could not be read and the
// pass was skipped; per-process failures remove the process and are not
// reported.
func (a *Accountant) Refresh(ctx context.Context) error {
	a.pass.Lock()
	defer a.pass.Unlock()

	ctx, span := a.tracer.Start(ctx, "accounting.refresh")
	defer span.End()
	start := a.clock.Now()

	sys, err := a.sampler.System()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "system sample")
		return fmt.Errorf("accounting: system sample: %w", err)
	}

	a.mu.Lock()
	prev, first := a.prev, !a.havePrev
	a.prev, a.havePrev = sys, true
	a.mu.Unlock()
	if first {
		span.SetAttributes(attribute.Bool("procwatch.baseline", true))
		return nil
	}

	running := util.DeltaU64(sys.Running, prev.Running)
	idle := util.DeltaU64(sys.Idle, prev.Idle)
	usage := util.Clamp01(util.Ratio(running, running+idle))

	a.mu.Lock()
	a.usage = Usage{Fraction: usage, At: start}
	a.mu.Unlock()
	span.SetAttributes(
		attribute.Int64("procwatch.running_delta", int64(running)),
		attribute.Int64("procwatch.idle_delta", int64(idle)),
		attribute.Float64("procwatch.system_usage", usage),
	)

	if !a.perProcess {
		return nil
	}

	applied, removed := a.distribute(ctx, usage, start)
	span.SetAttributes(
		attribute.Int("procwatch.processes", applied),
		attribute.Int("procwatch.removed", removed),
	)
	a.log.Debug("refresh done",
		"usage", usage, "processes", applied, "removed", removed, "took", a.clock.Since(start))
	return nil
}

// distribute samples every record without holding the table, then applies
// deltas and percentages in one atomic update.
func (a *Accountant) distribute(ctx context.Context, usage float64, at time.Time) (applied, removed int) {
	refs := a.table.PIDs()
	samples := make([]sampled, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			return 0, 0
		}
		st, err := a.sampler.Process(ref.PID)
		samples = append(samples, sampled{ref: ref, stat: st, err: err})
	}

	a.table.Update(func(tx *process.Tx) {
		deltas := make([]uint64, len(samples))
		live := make([]bool, len(samples))
		var total uint64

		for i, s := range samples {
			if s.err != nil {
				if !tx.Remove(s.ref) {
					continue
				}
				removed++
				if proc.IsGone(s.err) {
					a.log.Debug("process exited", "pid", s.ref.PID)
				} else {
					a.log.Warn("unreadable process sample, dropping", "pid", s.ref.PID, "err", s.err)
				}
				continue
			}
			last, ok := tx.LastTicks(s.ref)
			if !ok {
				// replaced or removed while we were sampling
				continue
			}
			live[i] = true
			ticks := s.stat.Ticks()
			if last != 0 && ticks >= last {
				deltas[i] = ticks - last
				total += deltas[i]
			}
		}

		for i, s := range samples {
			if !live[i] {
				continue
			}
			var cpu float64
			if usage > 0 && total > 0 {
				cpu = usage * util.Ratio(deltas[i], total)
			}
			tx.Apply(s.ref, process.Sample{
				State:  process.StateFromCode(s.stat.State),
				Ticks:  s.stat.Ticks(),
				CPU:    cpu,
				PPID:   s.stat.PPID,
				RSS:    types.Bytes(s.stat.RSS),
				VSize:  types.Bytes(s.stat.VSize),
				Shared: types.Bytes(s.stat.Shared),
				At:     at,
			})
			applied++
		}
	})
	return applied, removed
}
