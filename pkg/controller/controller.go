// Package controller composes the process table, discovery and CPU
// accounting into one engine with an explicit Start/Stop lifecycle.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"oss.indeed.com/go/libtime"

	"github.com/ja7ad/procwatch/pkg/accounting"
	"github.com/ja7ad/procwatch/pkg/discovery"
	"github.com/ja7ad/procwatch/pkg/process"
)

// Mode is the discovery strategy in use.
type Mode int

const (
	ModeIdle   Mode = iota // not started
	ModeEvents             // kernel proc connector
	ModeScan               // periodic /proc scans
)

func (m Mode) String() string {
	switch m {
	case ModeEvents:
		return "events"
	case ModeScan:
		return "scan"
	default:
		return "idle"
	}
}

type Config struct {
	Interval    time.Duration
	PerProcess  bool // false selects global-only accounting
	Netlink     bool // false forces scan mode
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Second,
		PerProcess:  true,
		Netlink:     true,
		EventBuffer: 1024,
	}
}

// Opener opens the event-driven discovery source.
type Opener func(buffer int, log *slog.Logger) (discovery.Source, error)

type lifecycle int

const (
	created lifecycle = iota
	running
	stopped
)

type Controller struct {
	cfg Config

	table   *process.Table
	acct    *accounting.Accountant
	sampler accounting.Sampler
	scanner *discovery.Scanner
	open    Opener

	resolver process.Resolver
	clock    libtime.Clock
	tracer   trace.Tracer
	log      *slog.Logger

	lifeMu sync.Mutex // serialises Start and Stop

	mu     sync.Mutex
	state  lifecycle
	mode   Mode
	source discovery.Source
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending chan struct{} // at most one queued refresh
}

type Option func(*Controller)

func WithSampler(s accounting.Sampler) Option {
	return func(c *Controller) { c.sampler = s }
}

func WithScanner(s *discovery.Scanner) Option {
	return func(c *Controller) { c.scanner = s }
}

// WithOpener replaces the proc connector, nil disables event discovery.
func WithOpener(o Opener) Option {
	return func(c *Controller) { c.open = o }
}

func WithResolver(r process.Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

func WithClock(clk libtime.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func New(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("controller: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}

	c := &Controller{
		cfg:     cfg,
		clock:   libtime.SystemClock(),
		log:     slog.Default(),
		pending: make(chan struct{}, 1),
	}
	platformDefaults(c)
	for _, o := range opts {
		o(c)
	}
	if c.sampler == nil || c.scanner == nil {
		return nil, ErrNoSampler
	}

	tableOpts := []process.Option{process.WithLogger(c.log)}
	if c.resolver != nil {
		tableOpts = append(tableOpts, process.WithResolver(c.resolver))
	}
	c.table = process.NewTable(tableOpts...)

	acctOpts := []accounting.Option{accounting.WithLogger(c.log), accounting.WithClock(c.clock)}
	if !cfg.PerProcess {
		acctOpts = append(acctOpts, accounting.GlobalOnly())
	}
	if c.tracer != nil {
		acctOpts = append(acctOpts, accounting.WithTracer(c.tracer))
	}
	c.acct = accounting.New(c.table, c.sampler, acctOpts...)
	return c, nil
}

// Start seeds the table from a scan, subscribes to process events (falling
// back to periodic scans when that fails), runs the first accounting pass
// to establish the baseline and arms the refresh timer.
func (c *Controller) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	switch st {
	case running:
		return ErrStarted
	case stopped:
		return ErrStopped
	}

	if _, _, err := c.scanner.Scan(c.table); err != nil {
		return fmt.Errorf("controller: bootstrap: %w", err)
	}

	mode := ModeScan
	var src discovery.Source
	if c.cfg.Netlink && c.open != nil {
		var err error
		src, err = c.open(c.cfg.EventBuffer, c.log)
		if err != nil {
			src = nil
			c.log.Warn("process events unavailable, scanning instead", "err", err)
		} else {
			mode = ModeEvents
			// catch processes that started between the scan and the subscription
			if _, _, err := c.scanner.Scan(c.table); err != nil {
				c.log.Warn("rescan after subscribe", "err", err)
			}
		}
	}
	c.mu.Lock()
	c.mode, c.source = mode, src
	c.mu.Unlock()

	if err := c.acct.Refresh(ctx); err != nil {
		c.log.Warn("initial refresh", "err", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.wg.Add(2)
	go c.work(runCtx)
	go c.tick(runCtx)
	if src != nil {
		c.wg.Add(1)
		go c.listen(runCtx, src)
	}

	c.mu.Lock()
	c.state, c.cancel = running, cancel
	c.mu.Unlock()
	c.log.Info("controller started",
		"mode", mode.String(), "processes", c.table.Len(), "interval", c.cfg.Interval)
	return nil
}

// Stop cancels the timer, closes the event source and waits for the
// background goroutines. Every later call returns ErrStopped.
func (c *Controller) Stop() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	prev := c.state
	c.state = stopped
	src, cancel := c.source, c.cancel
	c.source = nil
	c.mu.Unlock()

	if prev != running {
		return nil
	}
	cancel()
	var err error
	if src != nil {
		err = src.Close()
	}
	c.wg.Wait()
	return err
}

func (c *Controller) listen(ctx context.Context, src discovery.Source) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src.Events():
			if !ok {
				if ctx.Err() == nil {
					c.log.Warn("process event source closed, scanning instead")
					c.mu.Lock()
					c.mode = ModeScan
					c.mu.Unlock()
				}
				return
			}
			c.apply(ev)
		}
	}
}

func (c *Controller) apply(ev discovery.Event) {
	switch ev.Kind {
	case discovery.Appeared:
		c.table.Insert(ev.PID)
	case discovery.Execed:
		c.table.Exec(ev.PID)
	case discovery.Disappeared:
		c.table.Remove(ev.PID)
	case discovery.Resync:
		added, removed, err := c.scanner.Scan(c.table)
		if err != nil {
			c.log.Warn("resync scan", "err", err)
			return
		}
		c.log.Info("resynced after lost events", "added", len(added), "removed", len(removed))
	}
}

func (c *Controller) tick(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.Mode() == ModeScan {
				if _, _, err := c.scanner.Scan(c.table); err != nil {
					c.log.Warn("scan", "err", err)
				}
			}
			c.queue()
		}
	}
}

// Trigger queues an accounting pass. It is dropped if one is already queued.
func (c *Controller) Trigger() error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	switch st {
	case created:
		return ErrNotStarted
	case stopped:
		return ErrStopped
	}
	c.queue()
	return nil
}

func (c *Controller) queue() {
	select {
	case c.pending <- struct{}{}:
	default:
		c.log.Debug("refresh already pending")
	}
}

func (c *Controller) work(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
			c.refresh(ctx)
		}
	}
}

func (c *Controller) refresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("refresh panicked", "panic", r)
		}
	}()
	start := c.clock.Now()
	if err := c.acct.Refresh(ctx); err != nil {
		c.log.Error("refresh failed", "err", err)
		return
	}
	c.log.Debug("refresh", "took", c.clock.Since(start))
}
