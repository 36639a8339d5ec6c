//go:build linux

package discovery

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// connectorMsg frames one proc_event the way the kernel does.
func connectorMsg(what uint32, data ...uint32) []byte {
	ev := make([]byte, procEventHdr+4*len(data))
	ne.PutUint32(ev[0:], what)
	for i, v := range data {
		ne.PutUint32(ev[procEventHdr+4*i:], v)
	}

	cn := make([]byte, cnMsgLen+len(ev))
	ne.PutUint32(cn[0:], cnIdxProc)
	ne.PutUint32(cn[4:], cnValProc)
	ne.PutUint16(cn[16:], uint16(len(ev)))
	copy(cn[cnMsgLen:], ev)

	return nlFrame(cn)
}

func nlFrame(payload []byte) []byte {
	total := unix.NLMSG_HDRLEN + len(payload)
	aligned := (total + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
	b := make([]byte, aligned)
	ne.PutUint32(b[0:], uint32(total))
	ne.PutUint16(b[4:], unix.NLMSG_DONE)
	copy(b[unix.NLMSG_HDRLEN:], payload)
	return b
}

func TestParseMessages(t *testing.T) {
	t.Run("exec", func(t *testing.T) {
		evs := parseMessages(connectorMsg(procEventExec, 4242, 4242))
		assert.Equal(t, []Event{{Kind: Execed, PID: 4242}}, evs)
	})
	t.Run("exec_from_thread_reports_tgid", func(t *testing.T) {
		evs := parseMessages(connectorMsg(procEventExec, 4250, 4242))
		assert.Equal(t, []Event{{Kind: Execed, PID: 4242}}, evs)
	})
	t.Run("fork_process", func(t *testing.T) {
		evs := parseMessages(connectorMsg(procEventFork, 1, 1, 77, 77))
		assert.Equal(t, []Event{{Kind: Appeared, PID: 77}}, evs)
	})
	t.Run("fork_thread_ignored", func(t *testing.T) {
		assert.Empty(t, parseMessages(connectorMsg(procEventFork, 1, 1, 78, 77)))
	})
	t.Run("exit_leader", func(t *testing.T) {
		evs := parseMessages(connectorMsg(procEventExit, 99, 99, 0, 9, 1, 1))
		assert.Equal(t, []Event{{Kind: Disappeared, PID: 99}}, evs)
	})
	t.Run("exit_thread_ignored", func(t *testing.T) {
		assert.Empty(t, parseMessages(connectorMsg(procEventExit, 100, 99, 0, 9, 1, 1)))
	})
	t.Run("uninteresting_event", func(t *testing.T) {
		assert.Empty(t, parseMessages(connectorMsg(0x00000004, 1, 1, 0, 0)))
	})
	t.Run("several_in_one_datagram", func(t *testing.T) {
		buf := append(connectorMsg(procEventExec, 10, 10), connectorMsg(procEventExit, 11, 11, 0, 0, 1, 1)...)
		assert.Equal(t, []Event{{Kind: Execed, PID: 10}, {Kind: Disappeared, PID: 11}}, parseMessages(buf))
	})
}

func TestParseMessages_Malformed(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		assert.Empty(t, parseMessages([]byte{1, 2, 3}))
	})
	t.Run("short_connector_header", func(t *testing.T) {
		assert.Empty(t, parseMessages(nlFrame(make([]byte, 8))))
	})
	t.Run("foreign_connector", func(t *testing.T) {
		msg := connectorMsg(procEventExec, 1, 1)
		ne.PutUint32(msg[unix.NLMSG_HDRLEN:], 7)
		assert.Empty(t, parseMessages(msg))
	})
	t.Run("declared_len_too_long", func(t *testing.T) {
		msg := connectorMsg(procEventExec, 1, 1)
		ne.PutUint16(msg[unix.NLMSG_HDRLEN+16:], 200)
		assert.Empty(t, parseMessages(msg))
	})
	t.Run("truncated_exec", func(t *testing.T) {
		assert.Empty(t, parseMessages(connectorMsg(procEventExec, 1)))
	})
	t.Run("valid_after_bad", func(t *testing.T) {
		bad := connectorMsg(procEventExec, 1)
		good := connectorMsg(procEventExec, 5, 5)
		assert.Equal(t, []Event{{Kind: Execed, PID: 5}}, parseMessages(append(bad, good...)))
	})
}

func TestSplitMessages(t *testing.T) {
	t.Run("two_frames_unaligned_payload", func(t *testing.T) {
		buf := append(nlFrame([]byte{1, 2, 3}), nlFrame([]byte{4})...)
		msgs, err := splitMessages(buf)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, []byte{1, 2, 3}, msgs[0].Data)
		assert.Equal(t, []byte{4}, msgs[1].Data)
		assert.Equal(t, uint16(unix.NLMSG_DONE), msgs[1].Header.Type)
	})
	t.Run("length_beyond_buffer", func(t *testing.T) {
		good := nlFrame([]byte{9, 9, 9, 9})
		bad := nlFrame(make([]byte, 8))
		ne.PutUint32(bad[0:], 500)
		msgs, err := splitMessages(append(good, bad...))
		assert.ErrorIs(t, err, errTruncated)
		require.Len(t, msgs, 1, "frames before the bad one survive")
	})
	t.Run("length_below_header", func(t *testing.T) {
		bad := nlFrame(nil)
		ne.PutUint32(bad[0:], 4)
		_, err := splitMessages(bad)
		assert.ErrorIs(t, err, errTruncated)
	})
	t.Run("short_tail_ignored", func(t *testing.T) {
		msgs, err := splitMessages([]byte{1, 2, 3})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestEncodeMcastOp(t *testing.T) {
	b := encodeMcastOp(procCnMcastListen, 3)
	require.Len(t, b, listenMsgTotal)

	msgs, err := splitMessages(b)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint16(unix.NLMSG_DONE), msgs[0].Header.Type)
	assert.Equal(t, uint32(3), msgs[0].Header.Seq)

	data := msgs[0].Data
	assert.Equal(t, uint32(cnIdxProc), ne.Uint32(data[0:]))
	assert.Equal(t, uint32(cnValProc), ne.Uint32(data[4:]))
	assert.Equal(t, uint16(mcastOpLen), ne.Uint16(data[16:]))
	assert.Equal(t, uint32(procCnMcastListen), ne.Uint32(data[cnMsgLen:]))
}

func TestEventSource_Live(t *testing.T) {
	src, err := OpenEventSource(64, nil)
	if err != nil {
		// needs CAP_NET_ADMIN and the initial network namespace
		t.Skipf("skipping: proc connector unavailable: %v", err)
	}
	defer src.Close()

	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("skipping: no true binary: %v", err)
	}
	cmd := exec.Command(bin)
	require.NoError(t, cmd.Start())
	child := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	deadline := time.After(2 * time.Second)
	var sawExit bool
	for !sawExit {
		select {
		case ev, ok := <-src.Events():
			require.True(t, ok, "events closed early")
			if ev.PID == child && ev.Kind == Disappeared {
				sawExit = true
			}
		case <-deadline:
			t.Skipf("skipping: no event for pid %d, connector may be namespaced", child)
		}
	}

	require.NoError(t, src.Close())
	for range src.Events() {
		// drain what was buffered; the loop ends once the channel is closed
	}
}
