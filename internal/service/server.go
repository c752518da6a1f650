package service

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/profile"
	"github.com/fxamacker/cbor/v2"
)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 4096
	socketPerm     = 0o660
	defaultHistory = 20
)

// ActionFunc handles one decoded request. A non-nil result is encoded
// into the response data field.
type ActionFunc func(ctx context.Context, req *Request) (any, error)

// Server serves the control protocol on a Unix socket. Each connection
// carries exactly one request and one response.
type Server struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     logger.Logger
	active     sync.WaitGroup
}

type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.logger = log
	}
}

// WithHistory enables getHistory.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.Handle(ActionGetHistory, historyAction(h))
	}
}

// NewServer registers every controller action on a server listening at
// socketPath.
func NewServer(socketPath string, ctrl Controller, opts ...Option) *Server {
	s := &Server{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger.Nop(),
	}

	s.Handle(ActionSetPowerMode, withMode(ctrl.SetProfile))
	s.Handle(ActionForceModeFreq, withMode(ctrl.ForceProfile))
	s.Handle(ActionClearOverride, func(context.Context, *Request) (any, error) {
		return nil, ctrl.ClearOverride()
	})
	s.Handle(ActionGetPowerMode, func(context.Context, *Request) (any, error) {
		return int32(ctrl.ActiveProfile()), nil
	})
	s.Handle(ActionGetAvailableModes, func(context.Context, *Request) (any, error) {
		ids := ctrl.AvailableProfiles()
		out := make([]int32, len(ids))
		for i, id := range ids {
			out[i] = int32(id)
		}
		return out, nil
	})
	s.Handle(ActionGetAvailableCPUFreqs, func(context.Context, *Request) (any, error) {
		return ctrl.AvailableCPUFreqs(), nil
	})
	s.Handle(ActionGetAvailableGPUFreqs, func(context.Context, *Request) (any, error) {
		return ctrl.AvailableGPUFreqs(), nil
	})
	s.Handle(ActionGetDockedState, func(context.Context, *Request) (any, error) {
		return ctrl.IsDocked(), nil
	})
	s.Handle(ActionGetStatus, func(context.Context, *Request) (any, error) {
		st := ctrl.Status()
		return Status{Active: int32(st.Active), Forced: st.Forced, Docked: st.Docked}, nil
	})

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handle registers handler for action, replacing any earlier one. It
// must not be called once Serve has started.
func (s *Server) Handle(action string, handler ActionFunc) {
	s.handlers[action] = handler
}

// Serve accepts connections until ctx is canceled, then waits for
// in-flight requests. A stale socket file is removed before listening
// and the socket is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	errFactory := errors.New()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(ErrListen, err).WithData(s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errFactory.Wrap(ErrListen, err).WithData(s.socketPath)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if err := os.Chmod(s.socketPath, socketPerm); err != nil {
		return errFactory.Wrap(ErrListen, err).WithData(s.socketPath)
	}

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info().Str("path", s.socketPath).Msg("Control socket listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn().Err(err).Msg("Accept failed")
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	s.logger.Debug().Msg("Control socket closed")

	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to set read deadline")
	}

	var req Request
	if err := decMode.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, errors.New().Wrap(ErrInvalidRequest, err))
		return
	}

	if req.Action == "" {
		s.writeError(conn, errors.New().WithMessage(ErrInvalidRequest, "missing required field: action"))
		return
	}

	handler, ok := s.handlers[req.Action]
	if !ok {
		s.writeError(conn, errors.New().WithData(ErrUnknownAction, req.Action))
		return
	}

	result, err := handler(ctx, &req)
	if err != nil {
		s.logger.Debug().Str("action", req.Action).Err(err).Msg("Action failed")
		s.writeError(conn, err)
		return
	}

	s.logger.Debug().Str("action", req.Action).Msg("Action served")
	s.writeSuccess(conn, result)
}

func (s *Server) writeError(conn net.Conn, err error) {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.ErrInternal
	}

	s.write(conn, Response{OK: false, Code: string(code), Error: err.Error()})
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	resp := Response{OK: true}

	if result != nil {
		data, err := marshal(result)
		if err != nil {
			s.writeError(conn, errors.New().Wrap(errors.ErrInternal, err))
			return
		}
		resp.Data = cbor.RawMessage(data)
	}

	s.write(conn, resp)
}

func (s *Server) write(conn net.Conn, resp Response) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to set write deadline")
	}
	if err := encMode.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}

func withMode(fn func(profile.ID) error) ActionFunc {
	return func(_ context.Context, req *Request) (any, error) {
		if req.Mode == nil {
			return nil, errors.New().WithMessage(ErrInvalidRequest, "missing required field: mode")
		}
		return nil, fn(profile.ID(*req.Mode))
	}
}

func historyAction(h History) ActionFunc {
	return func(_ context.Context, req *Request) (any, error) {
		limit := req.Limit
		if limit <= 0 {
			limit = defaultHistory
		}

		rows, err := h.Recent(limit)
		if err != nil {
			return nil, err
		}

		out := make([]HistoryEntry, len(rows))
		for i, r := range rows {
			out[i] = HistoryEntry{
				Timestamp: r.Timestamp.Unix(),
				RunID:     r.RunID,
				Operation: r.Operation,
				From:      int32(r.From),
				To:        int32(r.To),
				Forced:    r.Forced,
				Docked:    r.Docked,
				Error:     r.Error,
			}
		}
		return out, nil
	}
}
