package sysfs

import "codeberg.org/mutker/dockd/internal/logger"

// DryRun reads through to a real backend but keeps writes in memory,
// logging each one. Reads of a previously written path return the
// written value.
type DryRun struct {
	base   Reader
	mem    *Memory
	logger logger.Logger
}

func NewDryRun(base Reader, log logger.Logger) *DryRun {
	return &DryRun{base: base, mem: NewMemory(nil), logger: log}
}

func (d *DryRun) Read(path string) (string, error) {
	if v, ok := d.mem.Get(path); ok {
		return v, nil
	}
	return d.base.Read(path)
}

func (d *DryRun) Write(path, value string) error {
	d.logger.Info().Str("path", path).Str("value", value).Msg("Dry run: attribute write skipped")
	return d.mem.Write(path, value)
}

// Writes returns the writes recorded so far.
func (d *DryRun) Writes() []Write {
	return d.mem.Writes()
}
