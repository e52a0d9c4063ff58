package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rufuslabs/rufus"
	"github.com/rufuslabs/rufus/config"
	"github.com/rufuslabs/rufus/controller"
	"github.com/rufuslabs/rufus/server"
	"github.com/rufuslabs/rufus/telemetry"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the robot and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			robot, reg, lib, err := connect(ctx, cfg, log, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer robot.Close()

			srv := server.New(robot, reg, lib, log, cfg.Server.MetricsEnabled)
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
}

func newGestureCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gesture <name>",
		Short: "Execute a single gesture and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			robot, _, _, err := connect(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer robot.Close()

			return robot.ExecuteGesture(cmd.Context(), args[0])
		},
	}
}

func newMoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "move <address> <angle>",
		Short: "Move a single servo and exit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", args[0], err)
			}
			angle, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid angle %q: %w", args[1], err)
			}

			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			robot, _, _, err := connect(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer robot.Close()

			return robot.MoveServo(cmd.Context(), address, angle)
		},
	}
}

func newGesturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gestures",
		Short: "List the built-in gestures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := rufus.NewRegistry(rufus.DefaultServos())
			if err != nil {
				return err
			}
			lib, err := rufus.DefaultLibrary(reg)
			if err != nil {
				return err
			}
			for _, name := range lib.Names() {
				cmd.Println(name)
			}
			return nil
		},
	}
}

func loadConfig(path string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Log), nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// connect opens the serial link, waits for the executor's ready banner,
// and drives every servo to rest so the state map matches posture.
func connect(ctx context.Context, cfg *config.Config, log *logrus.Logger, registerer prometheus.Registerer) (*controller.Controller, *rufus.Registry, *rufus.Library, error) {
	reg, err := rufus.NewRegistry(rufus.DefaultServos())
	if err != nil {
		return nil, nil, nil, err
	}
	lib, err := rufus.DefaultLibrary(reg)
	if err != nil {
		return nil, nil, nil, err
	}

	transport, err := controller.Dial(cfg.Serial.Port, cfg.Serial.Baud, log)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := transport.WaitReady(ctx, cfg.Serial.ReadyTimeout.Duration()); err != nil {
		transport.Close()
		return nil, nil, nil, fmt.Errorf("executor not ready: %w", err)
	}

	var recorder controller.Recorder
	if cfg.Telemetry.Addr != "" {
		recorder = telemetry.NewClient(cfg.Telemetry.Addr)
	}

	robot, err := controller.New(controller.Config{
		Registry:   reg,
		Library:    lib,
		Transport:  transport,
		AckTimeout: cfg.Serial.AckTimeout.Duration(),
		Logger:     log,
		Metrics:    controller.NewMetrics(registerer),
		Recorder:   recorder,
	})
	if err != nil {
		transport.Close()
		return nil, nil, nil, err
	}

	if err := robot.MoveToRest(ctx); err != nil {
		log.WithError(err).Warn("initial rest positioning failed")
	}

	return robot, reg, lib, nil
}
