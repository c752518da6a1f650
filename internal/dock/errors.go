package dock

import (
	stderrors "errors"

	"codeberg.org/mutker/dockd/internal/errors"
)

const (
	ErrSourceOpen     = errors.ErrorCode("dock_source_open_failed")
	ErrPollerInit     = errors.ErrorCode("dock_poller_init_failed")
	ErrPollerWait     = errors.ErrorCode("dock_poller_wait_failed")
	ErrInvalidPattern = errors.ErrorCode("dock_invalid_pattern")
	ErrCableState     = errors.ErrorCode("dock_cable_state_failed")
)

// ErrDiscard is returned by a Source for a message that must be dropped,
// such as one not sent by the kernel or one that did not fit the buffer.
var ErrDiscard = stderrors.New("uevent message discarded")

func init() {
	errors.RegisterMessage(ErrSourceOpen, "Failed to open hardware event source")
	errors.RegisterMessage(ErrPollerInit, "Failed to initialize event poller")
	errors.RegisterMessage(ErrPollerWait, "Event poller failed")
	errors.RegisterMessage(ErrInvalidPattern, "Invalid event pattern")
	errors.RegisterMessage(ErrCableState, "Failed to read cable state")
}
