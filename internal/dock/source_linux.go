//go:build linux

package dock

import (
	"codeberg.org/mutker/dockd/internal/errors"
	"golang.org/x/sys/unix"
)

const (
	ueventMsgLen    = 2048
	ueventMaxEvents = 64
	// ueventGroup is the kernel's multicast group for kobject uevents.
	ueventGroup = 1
)

type netlinkSource struct {
	fd int
}

func openUevent() (Source, error) {
	errFactory := errors.New()

	fd, err := unix.Socket(unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, errFactory.Wrap(ErrSourceOpen, err).WithData("socket")
	}

	// SO_RCVBUFFORCE needs CAP_NET_ADMIN; fall back to the capped variant.
	rcvbuf := ueventMaxEvents * ueventMsgLen
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, rcvbuf); err != nil {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvbuf)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: ueventGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, errFactory.Wrap(ErrSourceOpen, err).WithData("bind")
	}

	return &netlinkSource{fd: fd}, nil
}

func (s *netlinkSource) Fd() int {
	return s.fd
}

// Receive drops messages from userspace senders (udevd rebroadcasts
// carry a non-zero port id) and messages that filled the buffer.
func (s *netlinkSource) Receive(buf []byte) (int, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, err
	}

	if nl, ok := from.(*unix.SockaddrNetlink); !ok || nl.Pid != 0 {
		return 0, ErrDiscard
	}
	if n >= len(buf) {
		return 0, ErrDiscard
	}

	return n, nil
}

func (s *netlinkSource) Close() error {
	return unix.Close(s.fd)
}
