package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/gwillem/simbot/pkg/remoteapi"
	"github.com/gwillem/simbot/pkg/remoteapi/fakesim"
	"github.com/gwillem/simbot/pkg/remoteapi/zmqapi"
	"github.com/gwillem/simbot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// loadConfig reads the configuration file. A missing default file yields the defaults.
func loadConfig() (robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err == nil {
		return *cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && opts.Config == robot.DefaultConfigFile {
		return robot.DefaultConfig(), nil
	}
	return robot.Config{}, fmt.Errorf("load config: %w", err)
}

// newLogger builds a console logger writing to path ("stderr" for the terminal).
func newLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func newDialer(logger *zap.Logger) remoteapi.Dialer {
	if opts.Fake {
		return fakesim.New()
	}
	return zmqapi.Dialer{Logger: logger}
}

func connect(ctx context.Context, cfg robot.Config, logger *zap.Logger) (*robot.Interface, error) {
	return robot.Connect(ctx, newDialer(logger), cfg, logger)
}

// shutdown stops the simulation and closes the session, logging failures.
func shutdown(r *robot.Interface, logger *zap.Logger) {
	if err := r.Stop(context.Background()); err != nil {
		logger.Warn("stop simulation", zap.Error(err))
	}
	if err := r.Close(); err != nil {
		logger.Warn("close session", zap.Error(err))
	}
}
