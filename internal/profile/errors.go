package profile

import (
	"fmt"

	"codeberg.org/mutker/dockd/internal/errors"
)

const (
	ErrMalformedLine  = errors.ErrorCode("profile_malformed_line")
	ErrInvalidNumber  = errors.ErrorCode("profile_invalid_number")
	ErrInvalidID      = errors.ErrorCode("profile_invalid_id")
	ErrTableNotFound  = errors.ErrorCode("profile_table_not_found")
	ErrTableReadError = errors.ErrorCode("profile_table_read_failed")
)

func init() {
	errors.RegisterMessage(ErrMalformedLine, "Malformed profile line")
	errors.RegisterMessage(ErrInvalidNumber, "Invalid number in profile line")
	errors.RegisterMessage(ErrInvalidID, "Invalid profile identifier")
	errors.RegisterMessage(ErrTableNotFound, "Profile table not found")
	errors.RegisterMessage(ErrTableReadError, "Failed to read profile table")
}

// LineError locates a parse failure in the source.
type LineError struct {
	Line  int
	Token string
}

func (e LineError) String() string {
	if e.Token == "" {
		return fmt.Sprintf("line %d", e.Line)
	}

	return fmt.Sprintf("line %d token %q", e.Line, e.Token)
}
