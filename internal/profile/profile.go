package profile

import (
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/dockd/internal/errors"
)

// ID identifies a power profile. Named levels are listed below; any other
// value is a vendor-specific level taken verbatim from the profile table.
type ID int32

const (
	Eco      ID = 0
	HOSStock ID = 1
	MaxPerf  ID = 2
)

var names = map[ID]string{
	Eco:      "ECO",
	HOSStock: "HOS_STOCK",
	MaxPerf:  "MAX_PERF",
}

func (id ID) String() string {
	if name, ok := names[id]; ok {
		return name
	}

	return fmt.Sprintf("PROFILE_%d", int32(id))
}

// ParseID accepts either a level name (case-insensitive) or its number.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	for id, name := range names {
		if strings.EqualFold(s, name) {
			return id, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.New().Wrap(ErrInvalidID, err).WithData(s)
	}

	return ID(n), nil
}

// Limits is the operating point of a profile. CPU is in kHz, GPU in the
// unit of the GPU max-frequency attribute. Mem is nil unless the table
// line carried a memory limit.
type Limits struct {
	CPU uint64
	GPU uint64
	Mem *uint64
}

// HasMem reports whether a memory limit was configured.
func (l Limits) HasMem() bool {
	return l.Mem != nil
}
