//go:build linux

package dock

import (
	"encoding/binary"
	"sync"

	"codeberg.org/mutker/dockd/internal/errors"
	"golang.org/x/sys/unix"
)

// Handler is called by the Poller when its descriptor is ready.
type Handler interface {
	Handle(events uint32)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(events uint32)

func (f HandlerFunc) Handle(events uint32) {
	f(events)
}

// Poller dispatches epoll readiness to per-descriptor handlers. Wait
// blocks indefinitely; Wake, which is safe from any goroutine, makes it
// return through an eventfd registered alongside the handlers.
type Poller struct {
	epfd   int
	wakefd int

	mu       sync.Mutex
	handlers map[int32]Handler

	closeOnce sync.Once
}

// NewPoller creates the epoll instance and its wake descriptor.
func NewPoller() (*Poller, error) {
	errFactory := errors.New()

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errFactory.Wrap(ErrPollerInit, err).WithData("epoll_create1")
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, errFactory.Wrap(ErrPollerInit, err).WithData("eventfd")
	}

	p := &Poller{
		epfd:     epfd,
		wakefd:   wakefd,
		handlers: make(map[int32]Handler),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		p.Close()
		return nil, errFactory.Wrap(ErrPollerInit, err).WithData("epoll_ctl")
	}

	return p, nil
}

// Register watches fd for readability and routes events to h.
func (p *Poller) Register(fd int, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.New().Wrap(ErrPollerInit, err).WithData("epoll_ctl")
	}
	p.handlers[int32(fd)] = h

	return nil
}

// Wait dispatches events until Wake is called.
func (p *Poller) Wait() error {
	events := make([]unix.EpollEvent, ueventMaxEvents)

	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.New().Wrap(ErrPollerWait, err)
		}

		for i := 0; i < n; i++ {
			if int(events[i].Fd) == p.wakefd {
				p.drainWake()
				return nil
			}

			p.mu.Lock()
			h := p.handlers[events[i].Fd]
			p.mu.Unlock()

			if h != nil {
				h.Handle(events[i].Events)
			}
		}
	}
}

// Wake makes a current or the next Wait return.
func (p *Poller) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	// EAGAIN means the counter is already non-zero: a wake is pending.
	if _, err := unix.Write(p.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return errors.New().Wrap(ErrPollerWait, err).WithData("eventfd write")
	}

	return nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
}

// Close releases the epoll and wake descriptors. Registered descriptors
// belong to their owners.
func (p *Poller) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := unix.Close(p.wakefd); cerr != nil {
			err = cerr
		}
		if cerr := unix.Close(p.epfd); cerr != nil && err == nil {
			err = cerr
		}
	})

	return err
}
