//go:build linux

package proc

import (
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageSize(t *testing.T) {
	t.Setenv("PAGE_SIZE", "")
	assert.Greater(t, PageSize(), 0, "PageSize must be > 0")

	t.Setenv("PAGE_SIZE", "16384")
	assert.Equal(t, 16384, PageSize())
}

func TestClockTicks(t *testing.T) {
	hz := ClockTicks()
	assert.Greater(t, hz, int64(0))
	assert.Equal(t, hz, ClockTicks(), "value is cached")
}

func TestReadStat_Self(t *testing.T) {
	me := os.Getpid()
	st, err := ReadStat(me)
	require.NoError(t, err)
	assert.Equal(t, me, st.PID)
	assert.Equal(t, os.Getppid(), st.PPID)
	assert.NotZero(t, st.State)
	assert.Greater(t, st.VSize, uint64(0))
	assert.Greater(t, st.RSS, uint64(0))

	// Counters do not go backwards.
	time.Sleep(5 * time.Millisecond)
	st2, err := ReadStat(me)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st2.Ticks(), st.Ticks())
}

func TestReadStat_NoSuchPid(t *testing.T) {
	_, err := ReadStat(999999999)
	require.Error(t, err)
	assert.True(t, IsGone(err), "missing pid should classify as gone: %v", err)
}

func TestReadSystemCPU(t *testing.T) {
	s0, err := ReadSystemCPU()
	require.NoError(t, err)
	assert.Greater(t, s0.Total(), uint64(0))

	time.Sleep(10 * time.Millisecond)
	s1, err := ReadSystemCPU()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s1.Running, s0.Running)
	assert.GreaterOrEqual(t, s1.Idle, s0.Idle)
}

func TestListPIDs_ContainsSelf(t *testing.T) {
	pids, err := ListPIDs()
	require.NoError(t, err)
	assert.True(t, slices.Contains(pids, os.Getpid()))
	for _, pid := range pids {
		assert.Greater(t, pid, 0)
	}
}

func TestExename(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, exe, Exename(os.Getpid()))

	assert.Equal(t, "pid999999999", Exename(999999999), "unresolvable exe yields placeholder")
}

func TestParsePID(t *testing.T) {
	cases := map[string]bool{
		"1":      true,
		"4242":   true,
		"":       false,
		"self":   false,
		"12a":    false,
		"0":      false,
		"-1":     false,
		"sys":    false,
		"000042": true,
	}
	for in, ok := range cases {
		t.Run(in, func(t *testing.T) {
			_, got := parsePID(in)
			assert.Equal(t, ok, got)
		})
	}
}
