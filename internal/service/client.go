package service

import (
	"context"
	"net"
	"time"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/profile"
)

const defaultCallTimeout = 15 * time.Second

// Client issues calls against a running daemon. The zero timeout means
// a default of 15 seconds per call.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath}
}

// Call sends req and decodes the response data into result, which may
// be nil. A failed remote call is returned as an errors.Error carrying
// the daemon's error code.
func (c *Client) Call(ctx context.Context, req Request, result any) error {
	errFactory := errors.New()

	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return errFactory.Wrap(ErrDial, err).WithData(c.SocketPath)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return errFactory.Wrap(ErrTransport, err)
		}
	}

	if err := encMode.NewEncoder(conn).Encode(req); err != nil {
		return errFactory.Wrap(ErrTransport, err)
	}

	var resp Response
	if err := decMode.NewDecoder(conn).Decode(&resp); err != nil {
		return errFactory.Wrap(ErrTransport, err)
	}

	if !resp.OK {
		code := errors.ErrorCode(resp.Code)
		if code == "" {
			code = ErrRemote
		}
		return errFactory.WithMessage(code, resp.Error)
	}

	if result != nil && len(resp.Data) > 0 {
		if err := unmarshal(resp.Data, result); err != nil {
			return errFactory.Wrap(ErrTransport, err)
		}
	}

	return nil
}

func (c *Client) SetPowerMode(ctx context.Context, id profile.ID) error {
	mode := int32(id)
	return c.Call(ctx, Request{Action: ActionSetPowerMode, Mode: &mode}, nil)
}

func (c *Client) ForceModeFreq(ctx context.Context, id profile.ID) error {
	mode := int32(id)
	return c.Call(ctx, Request{Action: ActionForceModeFreq, Mode: &mode}, nil)
}

func (c *Client) ClearOverride(ctx context.Context) error {
	return c.Call(ctx, Request{Action: ActionClearOverride}, nil)
}

func (c *Client) PowerMode(ctx context.Context) (profile.ID, error) {
	var mode int32
	err := c.Call(ctx, Request{Action: ActionGetPowerMode}, &mode)
	return profile.ID(mode), err
}

func (c *Client) AvailableModes(ctx context.Context) ([]profile.ID, error) {
	var modes []int32
	if err := c.Call(ctx, Request{Action: ActionGetAvailableModes}, &modes); err != nil {
		return nil, err
	}
	out := make([]profile.ID, len(modes))
	for i, m := range modes {
		out[i] = profile.ID(m)
	}
	return out, nil
}

func (c *Client) AvailableCPUFreqs(ctx context.Context) ([]uint64, error) {
	var freqs []uint64
	err := c.Call(ctx, Request{Action: ActionGetAvailableCPUFreqs}, &freqs)
	return freqs, err
}

func (c *Client) AvailableGPUFreqs(ctx context.Context) ([]uint64, error) {
	var freqs []uint64
	err := c.Call(ctx, Request{Action: ActionGetAvailableGPUFreqs}, &freqs)
	return freqs, err
}

func (c *Client) DockedState(ctx context.Context) (bool, error) {
	var docked bool
	err := c.Call(ctx, Request{Action: ActionGetDockedState}, &docked)
	return docked, err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.Call(ctx, Request{Action: ActionGetStatus}, &st)
	return st, err
}

func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var rows []HistoryEntry
	err := c.Call(ctx, Request{Action: ActionGetHistory, Limit: limit}, &rows)
	return rows, err
}
