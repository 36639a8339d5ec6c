//go:build linux

package controller

import (
	"log/slog"

	"github.com/ja7ad/procwatch/pkg/accounting"
	"github.com/ja7ad/procwatch/pkg/discovery"
)

func platformDefaults(c *Controller) {
	c.sampler = accounting.ProcSampler()
	c.scanner = discovery.ProcScanner()
	c.open = func(buffer int, log *slog.Logger) (discovery.Source, error) {
		return discovery.OpenEventSource(buffer, log)
	}
}
