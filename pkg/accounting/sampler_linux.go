//go:build linux

package accounting

import "github.com/ja7ad/procwatch/pkg/system/proc"

type procSampler struct{}

// ProcSampler samples /proc.
func ProcSampler() Sampler { return procSampler{} }

func (procSampler) System() (proc.CPUSample, error)    { return proc.ReadSystemCPU() }
func (procSampler) Process(pid int) (proc.Stat, error) { return proc.ReadStat(pid) }
