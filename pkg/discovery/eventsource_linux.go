//go:build linux

package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// EventSource listens to the kernel proc connector. Opening it needs
// CAP_NET_ADMIN in the initial network namespace.
type EventSource struct {
	f      *os.File
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	log    *slog.Logger
}

// OpenEventSource subscribes to process events. buffer is the capacity of
// the Events channel; when it is full the reader blocks and the kernel
// drops notifications for this socket.
func OpenEventSource(buffer int, log *slog.Logger) (*EventSource, error) {
	if log == nil {
		log = slog.Default()
	}
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_CONNECTOR)
	if err != nil {
		return nil, fmt.Errorf("discovery: netlink socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: cnIdxProc}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("discovery: bind proc connector: %w", err)
	}
	kernel := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(fd, encodeMcastOp(procCnMcastListen, 1), 0, kernel); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("discovery: subscribe proc connector: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("discovery: set nonblock: %w", err)
	}

	s := &EventSource{
		f:      os.NewFile(uintptr(fd), "proc-connector"),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		log:    log,
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *EventSource) Events() <-chan Event { return s.events }

// Close unsubscribes, closes the socket and waits for the reader to exit.
func (s *EventSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if rc, cerr := s.f.SyscallConn(); cerr == nil {
			_ = rc.Control(func(fd uintptr) {
				_ = unix.Sendto(int(fd), encodeMcastOp(procCnMcastIgnore, 2), 0,
					&unix.SockaddrNetlink{Family: unix.AF_NETLINK})
			})
		}
		err = s.f.Close()
		s.wg.Wait()
	})
	return err
}

func (s *EventSource) loop() {
	defer s.wg.Done()
	defer close(s.events)

	rc, err := s.f.SyscallConn()
	if err != nil {
		s.log.Error("proc connector", "err", err)
		return
	}
	buf := make([]byte, os.Getpagesize()*4)
	for {
		var (
			n    int
			from unix.Sockaddr
			rerr error
		)
		err := rc.Read(func(fd uintptr) bool {
			n, from, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
			return !errors.Is(rerr, unix.EAGAIN)
		})
		if err != nil {
			// socket closed
			return
		}
		switch {
		case rerr == nil:
		case errors.Is(rerr, unix.EINTR):
			continue
		case errors.Is(rerr, unix.ENOBUFS):
			s.log.Warn("proc connector overrun, events lost")
			select {
			case s.events <- Event{Kind: Resync}:
			case <-s.done:
				return
			}
			continue
		default:
			select {
			case <-s.done:
			default:
				s.log.Error("proc connector read", "err", rerr)
			}
			return
		}

		if sa, ok := from.(*unix.SockaddrNetlink); !ok || sa.Pid != 0 {
			// only the kernel talks on this group
			continue
		}
		for _, ev := range parseMessages(buf[:n]) {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
