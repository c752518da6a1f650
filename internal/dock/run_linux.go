//go:build linux

package dock

import (
	"context"
	stderrors "errors"

	"golang.org/x/sys/unix"
)

// Run listens for uevents until ctx is cancelled. Cancelling ctx wakes
// the poller, after which the source and poller descriptors are closed
// and Run returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	src, err := m.open()
	if err != nil {
		return err
	}
	defer src.Close()

	poller, err := NewPoller()
	if err != nil {
		return err
	}
	defer poller.Close()

	if err := poller.Register(src.Fd(), &sourceHandler{
		src:     src,
		buf:     make([]byte, ueventMsgLen),
		monitor: m,
	}); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		if err := poller.Wake(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to wake dock monitor")
		}
	})
	defer stop()

	m.logger.Info().Str("cable_state", m.cablePath).Msg("Dock monitor started")

	if err := poller.Wait(); err != nil {
		m.logger.Error().Err(err).Msg("Dock monitor stopped on error")
		return err
	}

	m.logger.Info().Msg("Dock monitor stopped")

	return nil
}

// sourceHandler drains every queued message each time the source
// becomes readable.
type sourceHandler struct {
	src     Source
	buf     []byte
	monitor *Monitor
}

func (h *sourceHandler) Handle(_ uint32) {
	for {
		n, err := h.src.Receive(h.buf)
		switch {
		case err == nil:
			_ = h.monitor.HandleMessage(h.buf[:n])
		case stderrors.Is(err, ErrDiscard), err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		default:
			h.monitor.logger.Warn().Err(err).Msg("Failed to receive uevent")
			return
		}
	}
}
