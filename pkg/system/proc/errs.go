package proc

import "errors"

var (
	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoCPU indicates that /proc/stat had no (parsable) aggregate CPU line.
	ErrNoCPU = errors.New("proc: no cpu line")

	// ErrShortCPU indicates that the aggregate CPU line had fewer than ten counters.
	ErrShortCPU = errors.New("proc: short cpu line")
)
