package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/dockd/internal/config"
	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/profile"
	"codeberg.org/mutker/dockd/internal/service"
	"github.com/spf13/pflag"
)

const usage = `Usage: dockctl [flags] <command> [args]

Commands:
  status             show active profile, override and dock state
  mode               show the active profile
  modes              list available profiles
  cpu-freqs          list CPU frequency limits of all profiles
  gpu-freqs          list GPU frequency limits of all profiles
  docked             show the dock state
  set <profile>      select a profile (clears an override)
  force <profile>    pin a profile with override governors
  clear              release an override
  history [n]        show the last n recorded transitions

Profiles are ECO, HOS_STOCK, MAX_PERF or an integer id.

Flags:
`

type command struct {
	args int
	run  func(ctx context.Context, c *service.Client, out io.Writer, args []string) error
}

var commands = map[string]command{
	"status": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "profile: %s\nforced:  %t\ndocked:  %t\n", profile.ID(st.Active), st.Forced, st.Docked)
		return nil
	}},
	"mode": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		id, err := c.PowerMode(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil
	}},
	"modes": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		ids, err := c.AvailableModes(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(out, "%d\t%s\n", int32(id), id)
		}
		return nil
	}},
	"cpu-freqs": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		freqs, err := c.AvailableCPUFreqs(ctx)
		if err != nil {
			return err
		}
		printFreqs(out, freqs)
		return nil
	}},
	"gpu-freqs": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		freqs, err := c.AvailableGPUFreqs(ctx)
		if err != nil {
			return err
		}
		printFreqs(out, freqs)
		return nil
	}},
	"docked": {0, func(ctx context.Context, c *service.Client, out io.Writer, _ []string) error {
		docked, err := c.DockedState(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, docked)
		return nil
	}},
	"set": {1, func(ctx context.Context, c *service.Client, _ io.Writer, args []string) error {
		id, err := profile.ParseID(args[0])
		if err != nil {
			return err
		}
		return c.SetPowerMode(ctx, id)
	}},
	"force": {1, func(ctx context.Context, c *service.Client, _ io.Writer, args []string) error {
		id, err := profile.ParseID(args[0])
		if err != nil {
			return err
		}
		return c.ForceModeFreq(ctx, id)
	}},
	"clear": {0, func(ctx context.Context, c *service.Client, _ io.Writer, _ []string) error {
		return c.ClearOverride(ctx)
	}},
	"history": {-1, func(ctx context.Context, c *service.Client, out io.Writer, args []string) error {
		limit := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return errors.New().WithData(errors.ErrInvalidArgument, args[0])
			}
			limit = n
		}
		rows, err := c.History(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			line := fmt.Sprintf("%s  %-5s %s -> %s forced=%t docked=%t",
				time.Unix(r.Timestamp, 0).Format(time.RFC3339), r.Operation,
				profile.ID(r.From), profile.ID(r.To), r.Forced, r.Docked)
			if r.Error != "" {
				line += "  error: " + r.Error
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}},
}

func printFreqs(out io.Writer, freqs []uint64) {
	parts := make([]string, len(freqs))
	for i, f := range freqs {
		parts[i] = strconv.FormatUint(f, 10)
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
}

func main() {
	logger.Init(logger.WarnLevel, false)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("dockctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	socket := fs.String("socket", config.DefaultSocket, "RPC socket path")
	timeout := fs.Duration("timeout", 5*time.Second, "Call timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	cmd, ok := commands[rest[0]]
	if !ok || (cmd.args >= 0 && len(rest)-1 != cmd.args) || (cmd.args < 0 && len(rest) > 2) {
		fs.Usage()
		return 2
	}

	client := service.NewClient(*socket)
	client.Timeout = *timeout

	if err := cmd.run(context.Background(), client, stdout, rest[1:]); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg(rest[0] + " failed")
		} else {
			logger.Error().Err(err).Msg(rest[0] + " failed")
		}
		return 1
	}

	return 0
}
