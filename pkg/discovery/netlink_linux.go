//go:build linux

package discovery

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// Proc connector wire constants, see linux/cn_proc.h and linux/connector.h.
const (
	cnIdxProc = 0x1
	cnValProc = 0x1

	procCnMcastListen = 1
	procCnMcastIgnore = 2

	procEventFork = 0x00000001
	procEventExec = 0x00000002
	procEventExit = 0x80000000

	cnMsgLen       = 20 // cb_id{idx,val} seq ack len flags
	procEventHdr   = 16 // what cpu timestamp_ns
	execEventLen   = 8  // process_pid process_tgid
	forkEventLen   = 16 // parent_pid parent_tgid child_pid child_tgid
	exitEventLen   = 8  // process_pid process_tgid, rest ignored
	mcastOpLen     = 4
	listenMsgTotal = unix.NLMSG_HDRLEN + cnMsgLen + mcastOpLen
)

var ne = binary.NativeEndian

// encodeMcastOp builds the netlink message that subscribes to (or leaves)
// the proc connector multicast group.
func encodeMcastOp(op uint32, seq uint32) []byte {
	b := make([]byte, listenMsgTotal)

	ne.PutUint32(b[0:], listenMsgTotal)
	ne.PutUint16(b[4:], unix.NLMSG_DONE)
	ne.PutUint16(b[6:], 0)
	ne.PutUint32(b[8:], seq)
	ne.PutUint32(b[12:], 0)

	cn := b[unix.NLMSG_HDRLEN:]
	ne.PutUint32(cn[0:], cnIdxProc)
	ne.PutUint32(cn[4:], cnValProc)
	ne.PutUint32(cn[8:], seq)
	ne.PutUint32(cn[12:], 0)
	ne.PutUint16(cn[16:], mcastOpLen)
	ne.PutUint16(cn[18:], 0)

	ne.PutUint32(cn[cnMsgLen:], op)
	return b
}

var errTruncated = errors.New("discovery: truncated netlink message")

type message struct {
	Header unix.NlMsghdr
	Data   []byte
}

func nlmAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
}

// splitMessages walks the netlink frames of a datagram. Frames before a
// truncated one are returned along with errTruncated.
func splitMessages(buf []byte) ([]message, error) {
	var out []message
	for len(buf) >= unix.NLMSG_HDRLEN {
		h := unix.NlMsghdr{
			Len:   ne.Uint32(buf[0:]),
			Type:  ne.Uint16(buf[4:]),
			Flags: ne.Uint16(buf[6:]),
			Seq:   ne.Uint32(buf[8:]),
			Pid:   ne.Uint32(buf[12:]),
		}
		n := int(h.Len)
		if n < unix.NLMSG_HDRLEN || n > len(buf) {
			return out, errTruncated
		}
		out = append(out, message{Header: h, Data: buf[unix.NLMSG_HDRLEN:n]})
		buf = buf[min(nlmAlign(n), len(buf)):]
	}
	return out, nil
}

// parseMessages decodes a datagram from the proc connector. Anything
// truncated, foreign or uninteresting is skipped.
func parseMessages(buf []byte) []Event {
	msgs, _ := splitMessages(buf)
	var out []Event
	for _, m := range msgs {
		if ev, ok := parseConnector(m.Data); ok {
			out = append(out, ev)
		}
	}
	return out
}

func parseConnector(data []byte) (Event, bool) {
	if len(data) < cnMsgLen {
		return Event{}, false
	}
	if ne.Uint32(data[0:]) != cnIdxProc || ne.Uint32(data[4:]) != cnValProc {
		return Event{}, false
	}
	plen := int(ne.Uint16(data[16:]))
	payload := data[cnMsgLen:]
	if plen < procEventHdr || len(payload) < plen {
		return Event{}, false
	}
	payload = payload[:plen]

	what := ne.Uint32(payload[0:])
	ev := payload[procEventHdr:]

	switch what {
	case procEventFork:
		if len(ev) < forkEventLen {
			return Event{}, false
		}
		pid, tgid := ne.Uint32(ev[8:]), ne.Uint32(ev[12:])
		if pid != tgid {
			// new thread
			return Event{}, false
		}
		return Event{Kind: Appeared, PID: int(tgid)}, true
	case procEventExec:
		if len(ev) < execEventLen {
			return Event{}, false
		}
		return Event{Kind: Execed, PID: int(ne.Uint32(ev[4:]))}, true
	case procEventExit:
		if len(ev) < exitEventLen {
			return Event{}, false
		}
		pid, tgid := ne.Uint32(ev[0:]), ne.Uint32(ev[4:])
		if pid != tgid {
			return Event{}, false
		}
		return Event{Kind: Disappeared, PID: int(tgid)}, true
	default:
		return Event{}, false
	}
}
