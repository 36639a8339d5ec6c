//go:build linux

package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/tklauser/go-sysconf"
	"golang.org/x/sys/unix"
)

// PageSize returns the system memory page size in bytes.
// It first checks an env override (PAGE_SIZE) to ease testing,
// then falls back to os.Getpagesize().
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

var clockTicks = sync.OnceValue(func() int64 {
	if v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && v > 0 {
		return v
	}
	// USER_HZ on every mainstream architecture
	return 100
})

// ClockTicks returns the number of scheduler ticks per second (USER_HZ)
// in which utime and stime are expressed.
func ClockTicks() int64 { return clockTicks() }

// IsGone reports whether err means the process no longer exists.
// Opening /proc/<pid>/stat of an exited process fails with ENOENT,
// reading an already opened one with ESRCH.
func IsGone(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ESRCH)
}

//
// Per-PID readers
//

// ReadStat reads /proc/<pid>/stat and, best effort, /proc/<pid>/statm.
// A missing statm leaves Shared at zero; a missing stat is returned as is
// so callers can classify it with IsGone.
func ReadStat(pid int) (Stat, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return Stat{}, err
	}
	st, err := ParseStat(string(b), PageSize())
	if err != nil {
		return Stat{}, fmt.Errorf("pid %d: %w", pid, err)
	}
	if m, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid)); err == nil {
		if _, _, shared, err := ParseStatm(string(m)); err == nil {
			st.Shared = shared * uint64(PageSize())
		}
	}
	return st, nil
}

// Exename resolves /proc/<pid>/exe. Kernel threads and processes we may
// not inspect have no resolvable link; they get a "pid<N>" placeholder.
func Exename(pid int) string {
	name, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil || name == "" {
		return "pid" + strconv.Itoa(pid)
	}
	return name
}

//
// System-level readers
//

// ReadSystemCPU parses the aggregate "cpu" line of /proc/stat.
func ReadSystemCPU() (CPUSample, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return CPUSample{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		return ParseSystemCPU(line)
	}
	if err := sc.Err(); err != nil {
		return CPUSample{}, err
	}
	return CPUSample{}, ErrNoCPU
}

// ListPIDs enumerates the numeric directories of /proc.
func ListPIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, ok := parsePID(e.Name())
		if !ok {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func parsePID(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
	}
	pid, err := strconv.Atoi(name)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
