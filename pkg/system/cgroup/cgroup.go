//go:build linux

package cgroup

import (
	"fmt"
	"os"
)

// Detect inspects the mounts of the current process.
func Detect() (Hierarchy, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return Hierarchy{}, fmt.Errorf("cgroup: open mountinfo: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseMountinfo(f)
}

// ReadProcCgroup returns the cgroup path of a process, see ParseProcCgroup.
func ReadProcCgroup(pid int) (string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/cgroup", pid))
	if err != nil {
		return "", err
	}
	return ParseProcCgroup(string(b))
}
