package cgroup

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type Version int

const (
	Unsupported Version = iota // non-Linux or no cgroup mounts
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 present
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Hierarchy lists the cgroup mount points seen in a mountinfo table.
type Hierarchy struct {
	V1 []string
	V2 []string
}

func (h Hierarchy) Version() Version {
	switch {
	case len(h.V1) > 0 && len(h.V2) > 0:
		return Hybrid
	case len(h.V2) > 0:
		return V2
	case len(h.V1) > 0:
		return V1
	default:
		return Unsupported
	}
}

func (h Hierarchy) String() string {
	switch h.Version() {
	case Hybrid:
		return fmt.Sprintf("%s: v2 on %s, v1 on %s", Hybrid, strings.Join(h.V2, ","), strings.Join(h.V1, ","))
	case V2:
		return fmt.Sprintf("%s on %s", V2, strings.Join(h.V2, ","))
	case V1:
		return fmt.Sprintf("%s on %s", V1, strings.Join(h.V1, ","))
	default:
		return "no cgroup mounts"
	}
}

// ParseMountinfo collects cgroup and cgroup2 mount points from a
// /proc/<pid>/mountinfo table (man 5 proc).
func ParseMountinfo(r io.Reader) (Hierarchy, error) {
	var h Hierarchy
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		mountPoint, fstype, ok := parseMountinfoLine(sc.Text())
		if !ok {
			continue
		}
		switch fstype {
		case "cgroup2":
			h.V2 = append(h.V2, mountPoint)
		case "cgroup":
			h.V1 = append(h.V1, mountPoint)
		}
	}
	if err := sc.Err(); err != nil {
		return Hierarchy{}, fmt.Errorf("cgroup: scan mountinfo: %w", err)
	}
	return h, nil
}

// parseMountinfoLine extracts the mount point (field 5) and the
// filesystem type following the " - " separator.
func parseMountinfoLine(line string) (mountPoint, fstype string, ok bool) {
	pre, post, found := strings.Cut(line, " - ")
	if !found {
		return "", "", false
	}
	head, tail := strings.Fields(pre), strings.Fields(post)
	if len(head) < 5 || len(tail) == 0 {
		return "", "", false
	}
	return head[4], tail[0], true
}
