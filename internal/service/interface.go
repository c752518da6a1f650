package service

import (
	"github.com/fxamacker/cbor/v2"

	"codeberg.org/mutker/dockd/internal/metrics"
	"codeberg.org/mutker/dockd/internal/power"
	"codeberg.org/mutker/dockd/internal/profile"
)

// Action names accepted on the control socket.
const (
	ActionSetPowerMode         = "setPowerMode"
	ActionForceModeFreq        = "forceModeFreq"
	ActionClearOverride        = "clearOverride"
	ActionGetPowerMode         = "getPowerMode"
	ActionGetAvailableModes    = "getAvailableModes"
	ActionGetAvailableCPUFreqs = "getAvailableCpuFreqs"
	ActionGetAvailableGPUFreqs = "getAvailableGpuFreqs"
	ActionGetDockedState       = "getDockedState"
	ActionGetStatus            = "getStatus"
	ActionGetHistory           = "getHistory"
)

// Controller is the power controller surface exposed over the socket.
type Controller interface {
	ActiveProfile() profile.ID
	AvailableProfiles() []profile.ID
	AvailableCPUFreqs() []uint64
	AvailableGPUFreqs() []uint64
	IsDocked() bool
	Status() power.Status
	SetProfile(id profile.ID) error
	ForceProfile(id profile.ID) error
	ClearOverride() error
}

// History supplies recorded transitions for getHistory.
type History interface {
	Recent(limit int) ([]metrics.TransitionSnapshot, error)
}

// Request is the wire format of every call. Mode is required by
// setPowerMode and forceModeFreq; Limit is used by getHistory.
type Request struct {
	Action string `cbor:"action"`
	Mode   *int32 `cbor:"mode,omitempty"`
	Limit  int    `cbor:"limit,omitempty"`
}

// Response wraps every reply. Code is the error code of a failed call.
type Response struct {
	OK    bool            `cbor:"ok"`
	Code  string          `cbor:"code,omitempty"`
	Error string          `cbor:"error,omitempty"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

// Status is the reply to getStatus.
type Status struct {
	Active int32 `cbor:"active"`
	Forced bool  `cbor:"forced"`
	Docked bool  `cbor:"docked"`
}

// HistoryEntry is one row of the getHistory reply.
type HistoryEntry struct {
	Timestamp int64  `cbor:"timestamp"`
	RunID     string `cbor:"run_id"`
	Operation string `cbor:"operation"`
	From      int32  `cbor:"from"`
	To        int32  `cbor:"to"`
	Forced    bool   `cbor:"forced"`
	Docked    bool   `cbor:"docked"`
	Error     string `cbor:"error,omitempty"`
}
