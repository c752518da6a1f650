//go:build linux

package dock_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/dockd/internal/dock"
	"codeberg.org/mutker/dockd/internal/profile"
	"codeberg.org/mutker/dockd/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pairSource reads datagrams from one end of a socketpair.
type pairSource struct {
	fd     int
	closed atomic.Bool
}

func (s *pairSource) Fd() int { return s.fd }

func (s *pairSource) Receive(buf []byte) (int, error) {
	return unix.Read(s.fd, buf)
}

func (s *pairSource) Close() error {
	s.closed.Store(true)
	return unix.Close(s.fd)
}

func newPair(t *testing.T) (*pairSource, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fds[1]) })

	return &pairSource{fd: fds[0]}, fds[1]
}

func waitCall(t *testing.T, sw *fakeSwitcher) profile.ID {
	t.Helper()
	select {
	case id := <-sw.calls:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for profile switch")
		return 0
	}
}

func TestRunSwitchesOnEvents(t *testing.T) {
	src, peer := newPair(t)
	sw := newFakeSwitcher()
	sw.fail = 1
	attrs := sysfs.NewMemory(map[string]string{cablePath: "1"})

	mon := dock.New(sw, attrs, cablePath, dock.WithSource(func() (dock.Source, error) {
		return src, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	_, err := unix.Write(peer, partnerAdd)
	require.NoError(t, err)
	assert.Equal(t, profile.MaxPerf, waitCall(t, sw))

	// The first switch failed; the loop keeps going.
	attrs.Set(cablePath, "0")
	_, err = unix.Write(peer, uevent("remove@/devices/typec/port0/port0-partner"))
	require.NoError(t, err)
	assert.Equal(t, profile.Eco, waitCall(t, sw))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.True(t, src.closed.Load())
}

func TestRunStopsWhenCancelledBeforeStart(t *testing.T) {
	src, _ := newPair(t)
	mon := dock.New(newFakeSwitcher(), sysfs.NewMemory(nil), cablePath,
		dock.WithSource(func() (dock.Source, error) { return src, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, mon.Run(ctx))
}

func TestPollerWake(t *testing.T) {
	p, err := dock.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	got := make(chan uint32, 1)
	require.NoError(t, p.Register(fds[0], dock.HandlerFunc(func(events uint32) {
		var buf [16]byte
		_, _ = unix.Read(fds[0], buf[:])
		got <- events
		_ = p.Wake()
	})))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	require.NoError(t, p.Wait())
	assert.NotZero(t, (<-got)&unix.EPOLLIN)
}
