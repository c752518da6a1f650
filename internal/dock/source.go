package dock

// Source is a non-blocking datagram stream of raw uevent messages.
type Source interface {
	// Fd returns the descriptor to poll for readability.
	Fd() int
	// Receive reads one message into buf. It returns unix.EAGAIN once
	// drained and ErrDiscard for a message that must be skipped.
	Receive(buf []byte) (int, error)
	Close() error
}
