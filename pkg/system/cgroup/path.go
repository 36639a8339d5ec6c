package cgroup

import (
	"errors"
	"strings"
)

// ErrNoCgroup indicates that /proc/<pid>/cgroup had no usable entry.
var ErrNoCgroup = errors.New("cgroup: no cgroup entry")

// ParseProcCgroup picks one path out of /proc/<pid>/cgroup.
//
// Lines look like "hierarchy-ID:controller-list:path". The unified
// hierarchy entry ("0::/path") wins; on v1-only hosts the name=systemd
// hierarchy is used, then the first entry.
func ParseProcCgroup(data string) (string, error) {
	var systemd, first string
	for _, line := range strings.Split(data, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}
		switch {
		case parts[0] == "0" && parts[1] == "":
			return parts[2], nil
		case parts[1] == "name=systemd" && systemd == "":
			systemd = parts[2]
		case first == "":
			first = parts[2]
		}
	}
	if systemd != "" {
		return systemd, nil
	}
	if first != "" {
		return first, nil
	}
	return "", ErrNoCgroup
}
