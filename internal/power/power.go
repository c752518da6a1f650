package power

import (
	"sync"
	"time"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/profile"
	"codeberg.org/mutker/dockd/internal/sysfs"
)

// Controller owns the active profile and the override flag. Every
// operation holds mu across lookup and attribute writes, so transitions
// never interleave. Attribute writes are not transactional: a failed
// write is reported but earlier writes stay in place and the active
// profile still moves to the requested one.
type Controller struct {
	table     *profile.Table
	attrs     sysfs.Writer
	paths     Paths
	governors Governors
	logger    logger.Logger
	observer  Observer

	mu     sync.RWMutex
	active profile.ID
	forced bool
	docked bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithGovernors overrides DefaultGovernors.
func WithGovernors(g Governors) Option {
	return func(c *Controller) {
		c.governors = g
	}
}

// WithLogger sets the controller logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		c.logger = log.With("power")
	}
}

// WithObserver registers fn to be called after each operation, while
// the controller lock is held. fn must not call back into the controller.
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// New returns a controller in Normal(initial). No attribute is written
// until the first operation.
func New(table *profile.Table, attrs sysfs.Writer, paths Paths, initial profile.ID, opts ...Option) (*Controller, error) {
	if table == nil || table.Len() == 0 {
		return nil, errors.New().New(ErrNoProfiles)
	}

	c := &Controller{
		table:     table,
		attrs:     attrs,
		paths:     paths,
		governors: DefaultGovernors(),
		logger:    logger.Nop(),
		active:    initial,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ActiveProfile returns the current profile.
func (c *Controller) ActiveProfile() profile.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// IsForced reports whether a forced override is in effect.
func (c *Controller) IsForced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forced
}

// IsDocked returns the dock state last reported by SetDocked.
func (c *Controller) IsDocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docked
}

// SetDocked records the dock state read from the cable attribute.
func (c *Controller) SetDocked(docked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docked = docked
}

// Status returns active, forced and docked under one lock.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{Active: c.active, Forced: c.forced, Docked: c.docked}
}

// AvailableProfiles returns the ids in the profile table.
func (c *Controller) AvailableProfiles() []profile.ID {
	return c.table.IDs()
}

// AvailableCPUFreqs returns the CPU limits in AvailableProfiles order.
func (c *Controller) AvailableCPUFreqs() []uint64 {
	return c.table.CPUFreqs()
}

// AvailableGPUFreqs returns the GPU limits in AvailableProfiles order.
func (c *Controller) AvailableGPUFreqs() []uint64 {
	return c.table.GPUFreqs()
}

// SetProfile leaves any forced override and applies id. Selecting the
// already active profile writes nothing. An unknown id leaves the
// active profile unchanged, though an override is still cleared.
func (c *Controller) SetProfile(id profile.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.active
	wasForced := c.forced
	if c.forced {
		if err := c.restoreGovernors(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to restore default governors")
		}
		c.forced = false
	}

	if id == c.active {
		c.logger.Debug().Stringer("profile", id).Msg("Profile already active")
		if wasForced {
			c.notify(OpSet, from, nil)
		}
		return nil
	}

	limits, err := c.lookup(id)
	if err != nil {
		if wasForced {
			c.notify(OpSet, from, err)
		}
		return err
	}

	err = c.apply(id, limits)
	c.notify(OpSet, from, err)

	return err
}

// ForceProfile applies id and pins it with the override governors,
// writing the GPU limit to the manual-frequency attribute. The override
// lasts until SetProfile or ClearOverride. An unknown id changes nothing.
func (c *Controller) ForceProfile(id profile.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits, err := c.lookup(id)
	if err != nil {
		return err
	}

	from := c.active
	c.forced = true

	var firstErr error
	if id != c.active {
		firstErr = c.apply(id, limits)
	}

	for _, w := range []struct{ path, value string }{
		{c.paths.CPUGovernor, c.governors.CPUOverride},
		{c.paths.GPUGovernor, c.governors.GPUOverride},
	} {
		if err := c.write(w.path, w.value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.writeUint(c.paths.GPUManualFreq, limits.GPU); err != nil && firstErr == nil {
		firstErr = err
	}

	c.logger.Info().
		Stringer("profile", id).
		Uint64("gpu_freq", limits.GPU).
		Msg("Frequency override applied")
	c.notify(OpForce, from, firstErr)

	return firstErr
}

// ClearOverride restores the default governors. The override flag is
// always cleared; only the write outcome is reported.
func (c *Controller) ClearOverride() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.forced = false
	err := c.restoreGovernors()
	c.notify(OpClear, c.active, err)

	return err
}

func (c *Controller) lookup(id profile.ID) (profile.Limits, error) {
	limits, ok := c.table.Lookup(id)
	if !ok {
		return profile.Limits{}, errors.New().WithData(ErrUnknownProfile, id)
	}

	return limits, nil
}

// apply writes every limit of id, then marks it active regardless of
// write failures. The first failure is returned.
func (c *Controller) apply(id profile.ID, limits profile.Limits) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(c.writeUint(c.paths.CPUMaxFreq, limits.CPU))
	record(c.writeUint(c.paths.GPUMaxFreq, limits.GPU))
	if limits.Mem != nil && c.paths.MemMaxFreq != "" {
		record(c.writeUint(c.paths.MemMaxFreq, *limits.Mem))
	}

	c.active = id

	event := c.logger.Info()
	if firstErr != nil {
		event = c.logger.Warn()
		event.Err(firstErr)
	}
	event.Stringer("profile", id).
		Uint64("cpu_freq", limits.CPU).
		Uint64("gpu_freq", limits.GPU).
		Msg("Profile applied")

	return firstErr
}

func (c *Controller) restoreGovernors() error {
	var firstErr error
	for _, w := range []struct{ path, value string }{
		{c.paths.CPUGovernor, c.governors.CPUDefault},
		{c.paths.GPUGovernor, c.governors.GPUDefault},
	} {
		if err := c.write(w.path, w.value); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (c *Controller) write(path, value string) error {
	if err := c.attrs.Write(path, value); err != nil {
		return errors.New().Wrap(ErrAttributeWriteFailed, err).WithData(path)
	}

	return nil
}

func (c *Controller) writeUint(path string, n uint64) error {
	if err := sysfs.WriteUint(c.attrs, path, n); err != nil {
		return errors.New().Wrap(ErrAttributeWriteFailed, err).WithData(path)
	}

	return nil
}

func (c *Controller) notify(op Operation, from profile.ID, err error) {
	if c.observer == nil {
		return
	}

	c.observer(Transition{
		Time:   time.Now(),
		Op:     op,
		From:   from,
		To:     c.active,
		Forced: c.forced,
		Docked: c.docked,
		Err:    err,
	})
}
