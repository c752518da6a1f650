package service

import "codeberg.org/mutker/dockd/internal/errors"

const (
	ErrInvalidRequest = errors.ErrorCode("service_invalid_request")
	ErrUnknownAction  = errors.ErrorCode("service_unknown_action")
	ErrListen         = errors.ErrorCode("service_listen_failed")
	ErrDial           = errors.ErrorCode("service_dial_failed")
	ErrTransport      = errors.ErrorCode("service_transport_failed")
	ErrRemote         = errors.ErrorCode("service_remote_failed")
)

func init() {
	errors.RegisterMessage(ErrInvalidRequest, "Invalid request")
	errors.RegisterMessage(ErrUnknownAction, "Unknown action")
	errors.RegisterMessage(ErrListen, "Failed to listen on control socket")
	errors.RegisterMessage(ErrDial, "Failed to connect to control socket")
	errors.RegisterMessage(ErrTransport, "Control socket I/O failed")
	errors.RegisterMessage(ErrRemote, "Daemon returned an error")
}
