// rover - teleoperation gateway with a command freshness watchdog.
// Serves the operator UI and HTTP/WebSocket command API, optionally bridges
// commands from MQTT, and stops the wheels when drive commands go stale.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/freshness"
	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/mqttbridge"
	"github.com/teslashibe/go-rover/pkg/watchdog"
	"github.com/teslashibe/go-rover/pkg/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code once every deferred cleanup has run.
func realMain() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		return 2
	}

	log.Setup(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log.L()); err != nil {
		log.Error("rover exited", "error", err)
		return 1
	}
	return 0
}

// loadConfig merges .env, the environment, flags and the actuator file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.LoadActuatorsFile(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("🤖 rover starting",
		"version", version,
		"addr", cfg.Addr,
		"sink", cfg.Sink,
		"hardware_disabled", cfg.HardwareDisabled,
		"gain", cfg.DriveGain,
		"deadline", cfg.WatchdogDeadline,
	)

	sink, err := actuator.New(cfg.ActuatorConfig(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("sink close failed", "error", err)
		}
	}()

	// The wheels start at neutral before anything can command them.
	if err := sink.Stop(); err != nil {
		logger.Warn("initial stop failed", "sink", sink.Name(), "error", err)
	}
	defer func() {
		if err := sink.Stop(); err != nil {
			logger.Warn("final stop failed", "sink", sink.Name(), "error", err)
		}
	}()

	// Touched at startup: the first trip happens one deadline after boot
	// unless an operator connects.
	tracker := freshness.New(freshness.SystemClock{})

	gw, err := gateway.New(sink, tracker, cfg.GatewayConfig(), logger)
	if err != nil {
		return err
	}

	wd, err := watchdog.New(tracker, sink, cfg.WatchdogConfig(), logger)
	if err != nil {
		return err
	}

	server, err := web.NewServer(cfg.WebConfig(version), gw, wd, tracker, logger)
	if err != nil {
		return err
	}

	var bridge *mqttbridge.Bridge
	if cfg.MQTTEnabled() {
		bridge, err = mqttbridge.New(cfg.MQTTConfig(), gw, logger)
		if err != nil {
			return err
		}
	}

	wd.OnTransition(func(from, to watchdog.State, age time.Duration) {
		server.NotifyTransition(from, to, age)
		if bridge != nil {
			bridge.NotifyTransition(from, to, age)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return wd.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}

	err = g.Wait()
	logger.Info("👋 rover stopped", "stats", wd.Stats())
	if bridge != nil {
		logger.Info("mqtt bridge stopped", "stats", bridge.Stats())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
