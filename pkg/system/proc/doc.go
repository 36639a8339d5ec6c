// Package proc reads process and system scheduling counters from /proc.
//
// It is stateless: every call reads the kernel's current view and decodes it
// into a value. Callers keep previous samples and compute deltas themselves
// (see pkg/accounting).
//
// # Readers
//
//   - ReadSystemCPU: aggregate "cpu" line of /proc/stat as a CPUSample
//     (Running and Idle tick counters since boot).
//   - ReadStat: /proc/<pid>/stat decoded into a Stat (state code, ppid,
//     utime, stime, vsize, rss), plus the shared page count of statm.
//   - ListPIDs: every numeric directory of /proc.
//   - Exename: the target of /proc/<pid>/exe, or "pid<N>" when it cannot be
//     resolved (kernel threads, foreign processes without ptrace access).
//
// # Errors
//
// A process can exit between being listed and being read. IsGone reports
// whether an error means exactly that (ENOENT on open, ESRCH on read);
// callers treat such a process as removed rather than as a failure.
// Malformed records surface as ErrNoStat / ErrShortStat, and a /proc/stat
// with fewer than ten CPU counters as ErrShortCPU.
//
// The Parse* functions are pure and exported so the decoding can be tested
// without a live /proc.
package proc
