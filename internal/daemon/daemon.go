// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/pulse/internal/command"
	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/config"
	logpkg "firestige.xyz/pulse/internal/log"
	"firestige.xyz/pulse/internal/metrics"
	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/pipeline"
	"firestige.xyz/pulse/internal/topology"
)

// stopTimeout bounds the metrics server shutdown.
const stopTimeout = 5 * time.Second

// Daemon manages the pulse daemon process lifecycle.
type Daemon struct {
	// Configuration
	mu         sync.Mutex // guards config and logCloser across reloads
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string
	logCloser  io.Closer

	// Core components
	metrics       *metrics.Controller
	registry      *component.Registry
	topology      *topology.Topology
	pipeline      *pipeline.Pipeline
	subscriptions *observe.Subscriptions
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	group        *errgroup.Group
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	stopErr      error
}

// New loads the configuration and creates a Daemon. Empty socketPath or
// pidFile fall back to the control section of the config.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if socketPath == "" {
		socketPath = cfg.Control.Socket
	}
	if pidFile == "" {
		pidFile = cfg.Control.PIDFile
	}

	return &Daemon{
		config:       cfg,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start initializes and starts all daemon components. Components that
// block run in an errgroup; the first one to fail cancels the others.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	closer, err := logpkg.Init(d.config.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	d.logCloser = closer

	slog.Info("starting pulse daemon",
		"version", command.Version,
		"config", d.configPath,
		"socket", d.socketPath,
	)

	// 2. Write PID file
	if err := WritePIDFile(d.pidFile); err != nil {
		return err
	}

	// 3. Metrics controller; everything observable depends on it
	d.metrics = metrics.NewController(metrics.Options{ProcessCollectors: true})
	if err := metrics.Ensure(d.metrics); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.group, d.ctx = errgroup.WithContext(ctx)
	d.cancel = cancel

	// 4. Topology control loop
	d.registry = component.NewRegistry()
	d.topology = topology.New()
	d.topology.Run(d.ctx)

	// 5. Pipeline
	d.pipeline = pipeline.NewBuilder().
		WithMetrics(d.metrics).
		WithTopology(d.topology).
		WithRegistry(d.registry).
		Build()
	if err := d.pipeline.Start(d.ctx, d.config.Components()); err != nil {
		cancel()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	// 6. Metrics server
	if err := d.startMetrics(); err != nil {
		cancel()
		d.pipeline.Stop()
		return err
	}

	// 7. Command handler
	d.subscriptions = observe.NewSubscriptions(d.metrics, d.registry)
	d.cmdHandler = command.NewCommandHandler(command.Options{
		Subscriptions:   d.subscriptions,
		Registry:        d.registry,
		Taps:            d.topology,
		Reloader:        d,
		DefaultInterval: d.config.API.DefaultInterval,
		TapBufferSize:   d.config.Tap.BufferSize,
	})
	d.cmdHandler.SetShutdownFunc(d.TriggerShutdown)

	// 8. UDS server for CLI control
	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	d.group.Go(func() error {
		if err := d.udsServer.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("uds server: %w", err)
		}
		return nil
	})

	slog.Info("daemon started successfully", "components", d.registry.Len())
	return nil
}

// Stop performs graceful shutdown of all daemon components. It is safe
// to call more than once; later calls return the first result.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.stopErr = d.stop()
	})
	return d.stopErr
}

func (d *Daemon) stop() error {
	slog.Info("initiating graceful shutdown")

	var errs error

	// 1. Stop accepting commands and cancel running streams
	if d.cancel != nil {
		d.cancel()
	}
	if d.group != nil {
		errs = multierr.Append(errs, d.group.Wait())
	}

	// 2. Stop the pipeline, then the topology loop detaches remaining taps
	if d.pipeline != nil {
		d.pipeline.Stop()
	}
	if d.topology != nil {
		d.topology.Wait()
	}

	// 3. Stop metrics server
	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		errs = multierr.Append(errs, d.metricsServer.Stop(ctx))
		cancel()
	}

	// 4. Remove PID file
	errs = multierr.Append(errs, RemovePIDFile(d.pidFile))

	if errs != nil {
		slog.Error("daemon stopped with errors", "error", errs)
	} else {
		slog.Info("daemon stopped gracefully")
	}

	// 5. Close the log file last
	d.mu.Lock()
	if d.logCloser != nil {
		errs = multierr.Append(errs, d.logCloser.Close())
		d.logCloser = nil
	}
	d.mu.Unlock()

	return errs
}

// Run runs the daemon main loop, blocking until shutdown is triggered.
// Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. daemon_shutdown command via UDS
//  3. a failing server goroutine
//
// SIGHUP reloads the configuration.
func (d *Daemon) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	slog.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				return d.Stop()

			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				}
			}

		case <-d.shutdownChan:
			slog.Info("shutdown triggered by command")
			return d.Stop()

		case <-d.ctx.Done():
			slog.Error("daemon component failed, shutting down")
			return d.Stop()
		}
	}
}

// Reload reloads the configuration file and replaces the running
// components. Log level and format are applied as well. The control
// socket, PID file and metrics listener require a restart.
// Implements command.ConfigReloader.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	components := newConfig.Components()
	if err := pipeline.Validate(components); err != nil {
		return fmt.Errorf("failed to validate components: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	closer, err := logpkg.Init(newConfig.Log)
	if err != nil {
		slog.Error("failed to reinitialize logging", "error", err)
	} else {
		if d.logCloser != nil {
			_ = d.logCloser.Close()
		}
		d.logCloser = closer
	}

	if err := d.pipeline.Reload(d.ctx, components); err != nil {
		return fmt.Errorf("failed to reload pipeline: %w", err)
	}

	requiresRestart := []string{}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	if newConfig.Control != d.config.Control {
		requiresRestart = append(requiresRestart, "control")
	}
	d.config = newConfig

	slog.Info("configuration reloaded",
		"components", len(components),
		"requires_restart", requiresRestart,
	)
	return nil
}

// TriggerShutdown triggers graceful shutdown from an external caller such
// as the daemon_shutdown command.
func (d *Daemon) TriggerShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdownChan)
	})
}

// Registry returns the component registry.
func (d *Daemon) Registry() *component.Registry {
	return d.registry
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsServer == nil {
		return ""
	}
	return d.metricsServer.Addr()
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path, d.metrics.Registry())
	if err := d.metricsServer.Start(d.ctx); err != nil {
		d.metricsServer = nil
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}
