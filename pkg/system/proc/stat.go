package proc

import (
	"strconv"
	"strings"
)

// Stat is a one-shot decode of /proc/<pid>/stat (and statm for Shared).
// Memory sizes are in bytes; CPU times are in clock ticks.
type Stat struct {
	PID   int
	Comm  string
	State byte
	PPID  int
	UTime uint64
	STime uint64

	VSize  uint64
	RSS    uint64
	Shared uint64
}

// Ticks is the cumulative user+kernel scheduling time.
func (s Stat) Ticks() uint64 { return s.UTime + s.STime }

// CPUSample holds the cumulative system-wide tick counters of /proc/stat.
//   - Running: user + nice + system + irq + softirq + steal + guest + guest_nice
//   - Idle:    idle + iowait
//
// Only the delta between two samples is meaningful.
type CPUSample struct {
	Running uint64
	Idle    uint64
}

// Total is Running + Idle.
func (c CPUSample) Total() uint64 { return c.Running + c.Idle }

// ParseStat decodes one /proc/<pid>/stat line.
//
// Caveats:
//   - comm (2nd field) is in parens and may itself contain spaces and
//     parens, so everything up to the last ") " is pid + comm.
//   - rss is reported in pages and converted with pageSize.
func ParseStat(line string, pageSize int) (Stat, error) {
	line = strings.TrimRight(line, "\n")
	open := strings.IndexByte(line, '(')
	i := strings.LastIndex(line, ") ")
	if open < 0 || i < open {
		return Stat{}, ErrNoStat
	}
	pid, err := strconv.Atoi(strings.TrimSpace(line[:open]))
	if err != nil {
		return Stat{}, ErrNoStat
	}
	fields := strings.Fields(line[i+2:])

	// Indexes relative to fields slice (overall field n => fields[n-3]):
	// state (3rd) => fields[0], ppid (4th) => fields[1],
	// utime (14th) => fields[11], stime (15th) => fields[12],
	// vsize (23rd) => fields[20], rss (24th) => fields[21].
	if len(fields) < 22 {
		return Stat{}, ErrShortStat
	}
	if len(fields[0]) != 1 {
		return Stat{}, ErrNoStat
	}

	st := Stat{
		PID:   pid,
		Comm:  line[open+1 : i],
		State: fields[0][0],
	}
	if st.PPID, err = strconv.Atoi(fields[1]); err != nil {
		return Stat{}, ErrNoStat
	}
	u64 := func(idx int) (uint64, error) {
		return strconv.ParseUint(fields[idx], 10, 64)
	}
	if st.UTime, err = u64(11); err != nil {
		return Stat{}, ErrNoStat
	}
	if st.STime, err = u64(12); err != nil {
		return Stat{}, ErrNoStat
	}
	if st.VSize, err = u64(20); err != nil {
		return Stat{}, ErrNoStat
	}
	// rss is a signed long in the kernel; negative values never make sense here.
	rss, err := strconv.ParseInt(fields[21], 10, 64)
	if err != nil {
		return Stat{}, ErrNoStat
	}
	if rss > 0 {
		st.RSS = uint64(rss) * uint64(pageSize)
	}
	return st, nil
}

// ParseStatm returns the size, resident and shared page counts of /proc/<pid>/statm.
func ParseStatm(data string) (size, resident, shared uint64, err error) {
	fs := strings.Fields(data)
	if len(fs) < 3 {
		return 0, 0, 0, ErrShortStat
	}
	vals := make([]uint64, 3)
	for i := range vals {
		if vals[i], err = strconv.ParseUint(fs[i], 10, 64); err != nil {
			return 0, 0, 0, ErrNoStat
		}
	}
	return vals[0], vals[1], vals[2], nil
}

// ParseSystemCPU decodes the aggregate "cpu" line of /proc/stat:
//
//	cpu user nice system idle iowait irq softirq steal guest guest_nice
//
// Fewer than ten counters is a hard error.
func ParseSystemCPU(line string) (CPUSample, error) {
	fs := strings.Fields(line)
	if len(fs) == 0 || fs[0] != "cpu" {
		return CPUSample{}, ErrNoCPU
	}
	if len(fs) < 11 {
		return CPUSample{}, ErrShortCPU
	}
	var v [10]uint64
	for i := range v {
		n, err := strconv.ParseUint(fs[i+1], 10, 64)
		if err != nil {
			return CPUSample{}, ErrNoCPU
		}
		v[i] = n
	}
	const (
		user = iota
		nice
		system
		idle
		iowait
		irq
		softirq
		steal
		guest
		guestNice
	)
	return CPUSample{
		Running: v[user] + v[nice] + v[system] + v[irq] + v[softirq] + v[steal] + v[guest] + v[guestNice],
		Idle:    v[idle] + v[iowait],
	}, nil
}
