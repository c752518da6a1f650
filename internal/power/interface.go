package power

import (
	"time"

	"codeberg.org/mutker/dockd/internal/profile"
)

// Paths names the control attributes the controller writes. Mem is
// optional; when empty, memory limits in the table are ignored.
type Paths struct {
	CPUMaxFreq    string
	CPUGovernor   string
	GPUMaxFreq    string
	GPUGovernor   string
	GPUManualFreq string
	MemMaxFreq    string
}

// Governors names the scaling policies used for normal operation and
// for a forced override.
type Governors struct {
	CPUDefault  string
	GPUDefault  string
	CPUOverride string
	GPUOverride string
}

// DefaultGovernors returns the governors of a Tegra X1 kernel.
func DefaultGovernors() Governors {
	return Governors{
		CPUDefault:  "schedutil",
		GPUDefault:  "nvhost_podgov",
		CPUOverride: "performance",
		GPUOverride: "userspace",
	}
}

// Operation names what caused a transition.
type Operation string

const (
	OpSet   Operation = "set"
	OpForce Operation = "force"
	OpClear Operation = "clear"
)

// Transition describes a completed controller operation. Err is the
// error returned to the caller, if any.
type Transition struct {
	Time   time.Time
	Op     Operation
	From   profile.ID
	To     profile.ID
	Forced bool
	Docked bool
	Err    error
}

// Observer is notified after every operation that changed or attempted
// to change hardware state.
type Observer func(Transition)

// Status is a consistent snapshot of the controller state.
type Status struct {
	Active profile.ID
	Forced bool
	Docked bool
}
