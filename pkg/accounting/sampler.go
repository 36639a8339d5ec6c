package accounting

import "github.com/ja7ad/procwatch/pkg/system/proc"

// Sampler reads the raw counters a refresh pass needs.
type Sampler interface {
	System() (proc.CPUSample, error)
	Process(pid int) (proc.Stat, error)
}
