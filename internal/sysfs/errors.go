package sysfs

import "codeberg.org/mutker/dockd/internal/errors"

const (
	ErrNotFound     = errors.ErrorCode("sysfs_not_found")
	ErrReadFailed   = errors.ErrorCode("sysfs_read_failed")
	ErrWriteFailed  = errors.ErrorCode("sysfs_write_failed")
	ErrCloseFailed  = errors.ErrorCode("sysfs_close_failed")
	ErrInvalidValue = errors.ErrorCode("sysfs_invalid_value")
)

func init() {
	errors.RegisterMessage(ErrNotFound, "Failed to open attribute")
	errors.RegisterMessage(ErrReadFailed, "Failed to read attribute")
	errors.RegisterMessage(ErrWriteFailed, "Failed to write attribute")
	errors.RegisterMessage(ErrCloseFailed, "Failed to close attribute")
	errors.RegisterMessage(ErrInvalidValue, "Unexpected attribute value")
}
