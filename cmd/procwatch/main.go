//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/procwatch/pkg/config"
	"github.com/ja7ad/procwatch/pkg/controller"
	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/system/proc"
	"github.com/ja7ad/procwatch/pkg/telemetry"
	"github.com/ja7ad/procwatch/pkg/watch"
)

const tracerName = "github.com/ja7ad/procwatch"

type opts struct {
	// engine, overlaid on the environment
	interval   time.Duration
	perProcess bool
	noNetlink  bool
	logLevel   string

	// watchers
	exenames []string
	pids     []int
	pidfiles []string
	matches  []string

	// output
	samples    int
	top        int
	countState []string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "procwatch",
		Short: "Linux process inventory and CPU accounting",
		Long: `procwatch keeps a live inventory of the processes on a Linux host,
following the kernel process connector when it is available and periodic
/proc scans otherwise. Every interval it splits the machine CPU usage
among the tracked processes and reports it for the processes you watch.

Settings are read from PROCWATCH_* environment variables; flags win.

Examples:
  procwatch --exename nginx --exename /usr/sbin/sshd
  procwatch --pidfile /run/postgresql/16-main.pid -i 2s -s 10
  procwatch --match 'name == "java" && cgroup startsWith "/system.slice"'
  procwatch --top 10 --count-state R --count-state Z`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			o.overlay(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, o)
		},
	}

	f := root.Flags()
	f.DurationVarP(&o.interval, "interval", "i", 10*time.Second, "accounting interval (e.g. 1s, 500ms)")
	f.BoolVar(&o.perProcess, "per-process", true, "split CPU usage among processes (false = machine total only)")
	f.BoolVar(&o.noNetlink, "no-netlink", false, "never subscribe to the proc connector, always scan /proc")
	f.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	f.StringArrayVar(&o.exenames, "exename", nil, "watch a process by executable base name or absolute path (repeatable)")
	f.IntSliceVar(&o.pids, "pid", nil, "watch a fixed pid (repeatable)")
	f.StringArrayVar(&o.pidfiles, "pidfile", nil, "watch the pid written in a file (repeatable)")
	f.StringArrayVar(&o.matches, "match", nil, "watch the first process matching an expression over pid, exe, name, cgroup (repeatable)")

	f.IntVarP(&o.samples, "samples", "s", 0, "number of reports to print (0 = run until Ctrl-C)")
	f.IntVar(&o.top, "top", 0, "also list the N processes using the most CPU")
	f.StringArrayVar(&o.countState, "count-state", nil, "print the number of processes in a state, by code or name (repeatable)")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// overlay copies the flags the user set explicitly onto cfg.
func (o opts) overlay(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Interval = o.interval
	}
	if f.Changed("per-process") {
		cfg.PerProcess = o.perProcess
	}
	if f.Changed("no-netlink") {
		cfg.Netlink = !o.noNetlink
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
}

func run(ctx context.Context, cfg config.Config, o opts) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	states, err := parseStates(o.countState)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := host.Describe(ctx)
	if err != nil {
		log.Warn("host summary", "err", err)
	}
	cgroups, err := cgroup.Detect()
	if err != nil {
		log.Debug("cgroup detection", "err", err)
	}
	fmt.Printf(_console, summary.Hostname, summary.Platform, summary.KernelVersion,
		summary.LogicalCPUs, proc.ClockTicks(), summary.TotalMemory.Humanized(), cgroups, time.Now().Format(time.DateTime))

	tel, err := telemetry.Setup(ctx, cfg.OTEL, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown", "err", err)
		}
	}()

	ctrl, err := controller.New(cfg.Engine(),
		controller.WithTracer(tel.Tracer(tracerName)),
		controller.WithLogger(log),
	)
	if err != nil {
		return err
	}

	agentOpts := []watch.AgentOption{
		watch.WithLookup(ctrl.Lookup),
		watch.WithTotalMemory(summary.TotalMemory),
		watch.WithLogger(log),
	}
	watched, err := buildWatchers(o, agentOpts)
	if err != nil {
		return err
	}
	for _, w := range watched {
		if err := ctrl.RegisterWatcher(w); err != nil {
			return err
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Stop(); err != nil {
			log.Warn("stop", "err", err)
		}
	}()

	tw := newTable(os.Stdout)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for n := 0; o.samples == 0 || n < o.samples; {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			return nil
		case <-ticker.C:
			rep, err := collect(ctrl, watched, o.top, states)
			if err != nil {
				return err
			}
			rep.print(tw)
			n++
		}
	}
	return nil
}

const _console = `procwatch - Linux process inventory and CPU accounting

       Host: %s
       Platform: %s
       Kernel: %s
       CPUs: %d (%d ticks/s)
       Mem: %s
       Cgroups: %s

Report as of %s:

`
