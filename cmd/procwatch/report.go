//go:build linux

package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/ja7ad/procwatch/pkg/accounting"
	"github.com/ja7ad/procwatch/pkg/controller"
	"github.com/ja7ad/procwatch/pkg/process"
	"github.com/ja7ad/procwatch/pkg/types"
	"github.com/ja7ad/procwatch/pkg/watch"
)

// watched is what the report needs from a watcher.
type watched interface {
	process.Watcher
	Name() string
	PID() (int, bool)
	CPU() float64
	State() process.State
	Value(watch.Field) (types.Bytes, error)
	Percent(watch.Field) (float64, error)
}

// engine is the read side of the controller.
type engine interface {
	Records() ([]process.Record, error)
	SystemUsage() (accounting.Usage, error)
	CountByState(process.State) (int, error)
	Mode() controller.Mode
}

func buildWatchers(o opts, agentOpts []watch.AgentOption) ([]watched, error) {
	var out []watched
	for _, name := range o.exenames {
		out = append(out, watch.NewExeName(name, agentOpts...))
	}
	for _, pid := range o.pids {
		if pid <= 0 {
			return nil, fmt.Errorf("invalid pid %d", pid)
		}
		out = append(out, watch.NewPID(pid, agentOpts...))
	}
	for _, path := range o.pidfiles {
		out = append(out, watch.NewPIDFile(path, agentOpts...))
	}
	for _, src := range o.matches {
		w, err := watch.NewExpr(src, agentOpts...)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func parseStates(codes []string) ([]process.State, error) {
	out := make([]process.State, 0, len(codes))
	for _, c := range codes {
		s, err := process.ParseState(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type watchRow struct {
	Name   string
	PID    int
	Bound  bool
	State  process.State
	CPU    float64
	RSS    types.Bytes
	MemPct float64
}

type stateCount struct {
	State process.State
	N     int
}

type report struct {
	At        time.Time
	Mode      controller.Mode
	Usage     accounting.Usage
	Processes int
	Watched   []watchRow
	Top       []process.Record
	Counts    []stateCount
}

func collect(e engine, ws []watched, top int, states []process.State) (report, error) {
	usage, err := e.SystemUsage()
	if err != nil {
		return report{}, err
	}
	recs, err := e.Records()
	if err != nil {
		return report{}, err
	}
	rep := report{At: time.Now(), Mode: e.Mode(), Usage: usage, Processes: len(recs)}

	for _, w := range ws {
		row := watchRow{Name: w.Name(), State: w.State()}
		row.PID, row.Bound = w.PID()
		if row.Bound {
			row.CPU = w.CPU()
			// the process may be gone since binding, leave memory at zero
			if v, err := w.Value(watch.RSS); err == nil {
				row.RSS = v
			}
			if p, err := w.Percent(watch.RSS); err == nil {
				row.MemPct = p
			}
		}
		rep.Watched = append(rep.Watched, row)
	}

	if top > 0 {
		slices.SortStableFunc(recs, func(a, b process.Record) int { return cmp.Compare(b.CPU, a.CPU) })
		rep.Top = recs[:min(top, len(recs))]
	}

	for _, s := range states {
		n, err := e.CountByState(s)
		if err != nil {
			return report{}, err
		}
		rep.Counts = append(rep.Counts, stateCount{State: s, N: n})
	}
	return rep, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (r report) print(tw *tabwriter.Writer) {
	fmt.Fprintf(tw, "%s  cpu %.2f%%  processes %d  discovery %s\n",
		r.At.Format(time.DateTime), r.Usage.Fraction*100, r.Processes, r.Mode)

	if len(r.Watched) > 0 {
		fmt.Fprintln(tw, "WATCHER\tPID\tSTATE\tCPU %\tRSS\tMEM %")
		for _, w := range r.Watched {
			if !w.Bound {
				fmt.Fprintf(tw, "%s\t-\t%s\t-\t-\t-\n", w.Name, w.State)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\t%s\t%.2f\n",
				w.Name, w.PID, w.State, w.CPU*100, w.RSS.Humanized(), w.MemPct)
		}
	}

	if len(r.Top) > 0 {
		fmt.Fprintln(tw, "PID\tNAME\tSTATE\tCPU %\tRSS")
		for _, rec := range r.Top {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n",
				rec.PID, rec.Identity.Name(), rec.State, rec.CPU*100, rec.RSS.Humanized())
		}
	}

	for _, c := range r.Counts {
		fmt.Fprintf(tw, "state %s\t%d\n", c.State, c.N)
	}
	fmt.Fprintln(tw)
	tw.Flush()
}
