package power

import "codeberg.org/mutker/dockd/internal/errors"

const (
	ErrUnknownProfile       = errors.ErrorCode("power_unknown_profile")
	ErrAttributeWriteFailed = errors.ErrorCode("power_attribute_write_failed")
	ErrNoProfiles           = errors.ErrorCode("power_no_profiles")
)

func init() {
	errors.RegisterMessage(ErrUnknownProfile, "Unknown power profile")
	errors.RegisterMessage(ErrAttributeWriteFailed, "Failed to write control attribute")
	errors.RegisterMessage(ErrNoProfiles, "Profile table is empty")
}
