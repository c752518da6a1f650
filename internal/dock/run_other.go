//go:build !linux

package dock

import (
	"context"

	"codeberg.org/mutker/dockd/internal/errors"
)

func openUevent() (Source, error) {
	return nil, errors.New().WithData(ErrSourceOpen, "kernel uevents require linux")
}

// Run is only supported on linux.
func (m *Monitor) Run(_ context.Context) error {
	return errors.New().WithData(ErrPollerInit, "event polling requires linux")
}
