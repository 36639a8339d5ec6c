//go:build linux

package process

import (
	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/proc"
)

// ResolveIdentity reads the identity of pid from /proc.
func ResolveIdentity(pid int) Identity {
	id := Identity{PID: pid, Exe: proc.Exename(pid)}
	if cg, err := cgroup.ReadProcCgroup(pid); err == nil {
		id.Cgroup = cg
	}
	return id
}
