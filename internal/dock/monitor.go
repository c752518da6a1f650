package dock

import (
	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/profile"
	"codeberg.org/mutker/dockd/internal/sysfs"
)

// Switcher is the part of the power controller the monitor drives.
type Switcher interface {
	SetDocked(docked bool)
	SetProfile(id profile.ID) error
}

// Monitor turns connector uevents into profile switches: docked selects
// the docked profile, undocked the undocked one.
type Monitor struct {
	switcher  Switcher
	attrs     sysfs.Reader
	cablePath string
	matcher   Matcher
	docked    profile.ID
	undocked  profile.ID
	open      func() (Source, error)
	logger    logger.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMatcher replaces the default PatternMatcher.
func WithMatcher(m Matcher) Option {
	return func(mon *Monitor) {
		mon.matcher = m
	}
}

// WithProfiles overrides the docked (MaxPerf) and undocked (Eco) profiles.
func WithProfiles(docked, undocked profile.ID) Option {
	return func(mon *Monitor) {
		mon.docked = docked
		mon.undocked = undocked
	}
}

// WithSource replaces the kernel uevent socket.
func WithSource(open func() (Source, error)) Option {
	return func(mon *Monitor) {
		mon.open = open
	}
}

// WithLogger sets the monitor logger.
func WithLogger(log logger.Logger) Option {
	return func(mon *Monitor) {
		mon.logger = log.With("dock")
	}
}

// New returns a monitor reading the cable state from cablePath.
func New(switcher Switcher, attrs sysfs.Reader, cablePath string, opts ...Option) *Monitor {
	m := &Monitor{
		switcher:  switcher,
		attrs:     attrs,
		cablePath: cablePath,
		docked:    profile.MaxPerf,
		undocked:  profile.Eco,
		open:      openUevent,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.matcher == nil {
		// DefaultPatterns are known to compile.
		m.matcher, _ = NewPatternMatcher()
	}

	return m
}

// HandleMessage processes one raw uevent. Messages the matcher rejects
// are ignored. A failed cable-state read drops the event; a failed
// profile switch is logged and returned. Neither stops the monitor.
func (m *Monitor) HandleMessage(msg []byte) error {
	fields := SplitFields(msg)
	if !m.matcher.Match(fields) {
		return nil
	}

	m.logger.Debug().Strs("fields", fields).Msg("Connector event detected")

	return m.Sync()
}

// Sync reads the cable state and switches to the matching profile.
func (m *Monitor) Sync() error {
	docked, err := sysfs.ReadBool(m.attrs, m.cablePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", m.cablePath).Msg("Failed to read cable state, ignoring event")
		return errors.New().Wrap(ErrCableState, err)
	}

	m.switcher.SetDocked(docked)

	target := m.undocked
	if docked {
		target = m.docked
	}

	m.logger.Info().Bool("docked", docked).Stringer("profile", target).Msg("Applying dock profile")

	if err := m.switcher.SetProfile(target); err != nil {
		m.logger.Error().Err(err).Stringer("profile", target).Msg("Failed to switch profile")
		return err
	}

	return nil
}
