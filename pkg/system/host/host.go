// Package host summarises the machine procwatch runs on.
package host

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Summary is a point-in-time description of the host.
type Summary struct {
	Hostname      string
	Platform      string
	KernelVersion string
	Arch          string
	LogicalCPUs   int
	TotalMemory   types.Bytes
}

func (s Summary) String() string {
	return fmt.Sprintf("%s (%s, kernel %s, %s) cpus=%d mem=%s",
		s.Hostname, s.Platform, s.KernelVersion, s.Arch, s.LogicalCPUs, s.TotalMemory.Humanized())
}

// Describe collects a Summary. Individual probes that fail leave their
// field zero; only a failure of every probe is reported as an error.
func Describe(ctx context.Context) (Summary, error) {
	s := Summary{Arch: runtime.GOARCH}

	var failed int
	info, err := host.InfoWithContext(ctx)
	if err == nil {
		s.Hostname = info.Hostname
		s.Platform = info.Platform + " " + info.PlatformVersion
		s.KernelVersion = info.KernelVersion
		if info.KernelArch != "" {
			s.Arch = info.KernelArch
		}
	} else {
		failed++
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.LogicalCPUs = n
	} else {
		failed++
	}

	if total, err := TotalMemory(ctx); err == nil {
		s.TotalMemory = total
	} else {
		failed++
	}

	if failed == 3 {
		return s, fmt.Errorf("host: no probe succeeded: %w", err)
	}
	return s, nil
}

// TotalMemory returns the physical memory of the host.
func TotalMemory(ctx context.Context) (types.Bytes, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("host: virtual memory: %w", err)
	}
	return types.Bytes(vm.Total), nil
}
