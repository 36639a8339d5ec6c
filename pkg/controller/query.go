package controller

import (
	"github.com/ja7ad/procwatch/pkg/accounting"
	"github.com/ja7ad/procwatch/pkg/process"
)

func (c *Controller) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stopped {
		return ErrStopped
	}
	return nil
}

// RegisterWatcher adds w to the binding pool and binds it right away if a
// tracked process matches. Watchers may be registered before Start.
func (c *Controller) RegisterWatcher(w process.Watcher) error {
	if err := c.alive(); err != nil {
		return err
	}
	c.table.Watch(w)
	return nil
}

// UnregisterWatcher removes w, unbinding it first if needed.
func (c *Controller) UnregisterWatcher(w process.Watcher) error {
	if err := c.alive(); err != nil {
		return err
	}
	c.table.Unwatch(w)
	return nil
}

func (c *Controller) Lookup(pid int) (process.Record, error) {
	if err := c.alive(); err != nil {
		return process.Record{}, err
	}
	rec, ok := c.table.Find(pid)
	if !ok {
		return process.Record{}, ErrUnknownPID
	}
	return rec, nil
}

func (c *Controller) CountByState(s process.State) (int, error) {
	if err := c.alive(); err != nil {
		return 0, err
	}
	return c.table.Count(s), nil
}

// Records returns every tracked process ordered by pid.
func (c *Controller) Records() ([]process.Record, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	return c.table.Records(), nil
}

// SystemUsage returns the machine-wide CPU fraction of the last pass.
func (c *Controller) SystemUsage() (accounting.Usage, error) {
	if err := c.alive(); err != nil {
		return accounting.Usage{}, err
	}
	return c.acct.Usage(), nil
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
