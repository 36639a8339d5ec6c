package watch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procwatch/pkg/process"
	"github.com/ja7ad/procwatch/pkg/types"
)

func quiet() AgentOption { return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func ident(pid int, exe, cg string) process.Identity {
	return process.Identity{PID: pid, Exe: exe, Cgroup: cg}
}

func TestExeName_Probe(t *testing.T) {
	base := NewExeName("nginx", quiet())
	assert.True(t, base.Probe(ident(1, "/usr/sbin/nginx", "")))
	assert.False(t, base.Probe(ident(1, "/usr/sbin/nginx-debug", "")))

	full := NewExeName("/usr/sbin/nginx", quiet())
	assert.True(t, full.Probe(ident(1, "/usr/sbin/nginx", "")))
	assert.False(t, full.Probe(ident(1, "/opt/nginx/sbin/nginx", "")))
	assert.Equal(t, "exe:/usr/sbin/nginx", full.Name())
}

func TestPID_Probe(t *testing.T) {
	w := NewPID(42, quiet())
	assert.True(t, w.Probe(ident(42, "/bin/x", "")))
	assert.False(t, w.Probe(ident(43, "/bin/x", "")))
}

func TestPIDFile_Probe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	w := NewPIDFile(path, quiet())

	assert.False(t, w.Probe(ident(100, "/bin/d", "")), "missing file never matches")

	require.NoError(t, os.WriteFile(path, []byte("100\n"), 0o644))
	assert.True(t, w.Probe(ident(100, "/bin/d", "")))
	assert.False(t, w.Probe(ident(101, "/bin/d", "")))

	require.NoError(t, os.WriteFile(path, []byte("101"), 0o644))
	assert.True(t, w.Probe(ident(101, "/bin/d", "")), "file is re-read on every probe")
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
		want    int
		ok      bool
	}{
		{"plain", "1234", 1234, true},
		{"newline", "1234\n", 1234, true},
		{"spaces", "  77 \nextra\n", 77, true},
		{"garbage", "abc", 0, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			pid, err := ReadPIDFile(path)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, pid)
		})
	}
}

func TestExpr(t *testing.T) {
	w, err := NewExpr(`name == "postgres" && cgroup startsWith "/system.slice"`, quiet())
	require.NoError(t, err)
	assert.True(t, w.Probe(ident(5, "/usr/lib/postgresql/16/bin/postgres", "/system.slice/postgresql.service")))
	assert.False(t, w.Probe(ident(5, "/usr/lib/postgresql/16/bin/postgres", "/user.slice")))

	byPID, err := NewExpr(`pid > 1000 && exe contains "java"`, quiet())
	require.NoError(t, err)
	assert.True(t, byPID.Probe(ident(1001, "/usr/lib/jvm/bin/java", "")))
	assert.False(t, byPID.Probe(ident(10, "/usr/lib/jvm/bin/java", "")))
}

func TestExpr_CompileErrors(t *testing.T) {
	_, err := NewExpr(`name ==`, quiet())
	assert.Error(t, err)

	_, err = NewExpr(`pid + 1`, quiet())
	assert.Error(t, err, "non-boolean expressions are rejected")

	_, err = NewExpr(`unknown_var == 1`, quiet())
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	for _, f := range []Field{RSS, VSize, Shared} {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseField("Resident")
	require.NoError(t, err)
	assert.Equal(t, RSS, got)

	_, err = ParseField("swap")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Panics(t, func() { Field(9).Of(process.Record{}) })
}

func TestAgent_Lifecycle(t *testing.T) {
	rec := process.Record{PID: 7, RSS: 512 << 20, VSize: 2 << 30, Shared: 64 << 20, State: process.Running}
	lookup := func(pid int) (process.Record, error) {
		if pid != 7 {
			return process.Record{}, errors.New("unknown pid")
		}
		return rec, nil
	}
	a := NewAgent("test", WithLookup(lookup), WithTotalMemory(types.Bytes(2<<30)), quiet())

	_, err := a.Value(RSS)
	assert.ErrorIs(t, err, ErrNotBound)
	assert.False(t, a.Available())

	a.OnBind(rec)
	pid, ok := a.PID()
	require.True(t, ok)
	assert.Equal(t, 7, pid)
	assert.True(t, a.Available())

	a.OnCPUUpdate(0.42)
	assert.InDelta(t, 0.42, a.CPU(), 1e-12)

	v, err := a.Value(RSS)
	require.NoError(t, err)
	assert.Equal(t, types.Bytes(512<<20), v)
	p, err := a.Percent(RSS)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, p, 1e-9)

	a.OnStateChange(process.Zombie)
	assert.False(t, a.Available())
	assert.Equal(t, process.Zombie, a.State())

	a.OnUnbind()
	_, ok = a.PID()
	assert.False(t, ok)
	assert.Equal(t, process.Dead, a.State())
	assert.Zero(t, a.CPU())
}

func TestWatchers_WithTable(t *testing.T) {
	tb := process.NewTable(process.WithResolver(func(pid int) process.Identity {
		names := map[int]string{10: "/usr/bin/redis-server", 20: "/usr/sbin/sshd"}
		return process.Identity{PID: pid, Exe: names[pid]}
	}))
	redis := NewExeName("redis-server", quiet())
	sshd := NewPID(20, quiet())
	tb.Watch(redis)
	tb.Watch(sshd)
	tb.Sync([]int{10, 20})

	pid, ok := redis.PID()
	require.True(t, ok)
	assert.Equal(t, 10, pid)
	pid, ok = sshd.PID()
	require.True(t, ok)
	assert.Equal(t, 20, pid)

	tb.Remove(10)
	_, ok = redis.PID()
	assert.False(t, ok)
}
