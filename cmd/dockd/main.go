package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/dockd/internal/config"
	"codeberg.org/mutker/dockd/internal/dock"
	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/metrics"
	"codeberg.org/mutker/dockd/internal/pid"
	"codeberg.org/mutker/dockd/internal/power"
	"codeberg.org/mutker/dockd/internal/profile"
	"codeberg.org/mutker/dockd/internal/service"
	"codeberg.org/mutker/dockd/internal/sysfs"
)

const recordTimeout = 2 * time.Second

var (
	cfg       *config.Config
	pidFile   *pid.File
	collector metrics.Collector
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(strings.ToLower(cfg.LogLevel))
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	errFactory := errors.New()

	pidFile = pid.New("")
	if err := pidFile.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	err := run(ctx)
	cleanup()
	if err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("dockd stopped")
		}
		logger.Fatal().Err(errFactory.Wrap(errors.ErrInternal, err)).Msg("dockd stopped")
	}
}

func run(ctx context.Context) error {
	errFactory := errors.New()
	log := logger.Default()

	tablePath := cfg.ProfileTablePath()
	table, err := profile.Load(tablePath, profile.WithGPUScale(cfg.GPUScale))
	if err != nil {
		return errFactory.Wrap(errors.ErrLoadProfiles, err).WithData(tablePath)
	}
	logger.Info().Str("path", tablePath).Int("profiles", table.Len()).Msg("Profile table loaded")

	initial, err := cfg.InitialProfile()
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	var attrs sysfs.ReadWriter = sysfs.New("")
	if cfg.DryRun {
		attrs = sysfs.NewDryRun(attrs, log.With("sysfs"))
		logger.Warn().Msg("Dry run: control attributes will not be written")
	}

	collector, err = metrics.NewService(metrics.Config{
		DBPath:       cfg.Metrics.Database,
		BatchSize:    cfg.Metrics.BatchSize,
		BatchTimeout: cfg.Metrics.BatchTimeout,
		Enabled:      cfg.Metrics.Enabled,
	}, log.With("metrics"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	ctrl, err := power.New(table, attrs, power.Paths{
		CPUMaxFreq:    cfg.Attributes.CPUMaxFreq,
		CPUGovernor:   cfg.Attributes.CPUGovernor,
		GPUMaxFreq:    cfg.Attributes.GPUMaxFreq,
		GPUGovernor:   cfg.Attributes.GPUGovernor,
		GPUManualFreq: cfg.Attributes.GPUManualFreq,
		MemMaxFreq:    cfg.Attributes.MemMaxFreq,
	}, initial,
		power.WithGovernors(power.Governors{
			CPUDefault:  cfg.Governors.CPUDefault,
			GPUDefault:  cfg.Governors.GPUDefault,
			CPUOverride: cfg.Governors.CPUOverride,
			GPUOverride: cfg.Governors.GPUOverride,
		}),
		power.WithLogger(log),
		power.WithObserver(recordTransition),
	)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	monitorOpts := []dock.Option{dock.WithLogger(log)}
	if len(cfg.Dock.Patterns) > 0 {
		matcher, err := dock.NewPatternMatcher(cfg.Dock.Patterns...)
		if err != nil {
			return errFactory.Wrap(errors.ErrStartMonitor, err)
		}
		monitorOpts = append(monitorOpts, dock.WithMatcher(matcher))
	}
	monitor := dock.New(ctrl, attrs, cfg.Attributes.CableState, monitorOpts...)

	if cfg.Dock.SyncOnStart {
		if err := monitor.Sync(); err != nil {
			logger.Warn().Err(err).Msg("Initial dock state sync failed")
		}
	}

	server := service.NewServer(cfg.Socket, ctrl,
		service.WithLogger(log.With("service")),
		service.WithHistory(collector),
	)

	// Either component failing stops the other.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil {
			fail(errFactory.Wrap(errors.ErrStartMonitor, err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			fail(errFactory.Wrap(errors.ErrServeRPC, err))
		}
	}()

	logger.Info().
		Str("profile", ctrl.ActiveProfile().String()).
		Str("socket", cfg.Socket).
		Msg("dockd started")

	wg.Wait()

	if ctrl.IsForced() {
		if err := ctrl.ClearOverride(); err != nil {
			logger.Error().Err(errFactory.Wrap(errors.ErrClearOverride, err)).Msg("Failed to restore governors")
		}
	}

	return firstErr
}

func recordTransition(t power.Transition) {
	if collector == nil {
		return
	}

	snapshot := &metrics.TransitionSnapshot{
		Timestamp: t.Time,
		Operation: string(t.Op),
		From:      int(t.From),
		To:        int(t.To),
		Forced:    t.Forced,
		Docked:    t.Docked,
	}
	if t.Err != nil {
		snapshot.Error = t.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Failed to record transition")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if collector != nil {
		if err := collector.Close(); err != nil {
			logger.Error().Err(errors.New().Wrap(errors.ErrCloseMetrics, err)).Msg("Failed to close metrics")
		}
	}
	if err := pidFile.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}
