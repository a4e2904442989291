package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

const DefaultConfigFile = "simbot.json"

// Config holds the robot configuration
type Config struct {
	Address         string `json:"address" yaml:"address"`
	Port            int    `json:"port" yaml:"port"`
	TimeoutMs       int    `json:"timeout_ms" yaml:"timeout_ms"`
	CommThreadCycle int    `json:"comm_thread_cycle_ms" yaml:"comm_thread_cycle_ms"`

	// Synchronous enables stepped mode. The simulation then only advances on FinishIteration.
	Synchronous bool `json:"synchronous" yaml:"synchronous"`

	// ImageTimeoutMs bounds the wait for a camera frame. Zero leaves it to the caller's context.
	ImageTimeoutMs      int `json:"image_timeout_ms" yaml:"image_timeout_ms"`
	ImagePollIntervalMs int `json:"image_poll_interval_ms" yaml:"image_poll_interval_ms"`

	Scene  SceneNames       `json:"scene" yaml:"scene"`
	Wheels WheelCalibration `json:"wheels" yaml:"wheels"`
}

// DefaultConfig returns the configuration of a local simulator running the standard scene.
func DefaultConfig() Config {
	remote := remoteapi.DefaultConfig()
	return Config{
		Address:             remote.Address,
		Port:                remote.Port,
		TimeoutMs:           int(remote.Timeout / time.Millisecond),
		CommThreadCycle:     int(remote.CommThreadCycle / time.Millisecond),
		ImageTimeoutMs:      5000,
		ImagePollIntervalMs: 1,
		Scene:               DefaultSceneNames(),
		Wheels:              DefaultWheelCalibration(),
	}
}

// Remote returns the session settings.
func (c Config) Remote() remoteapi.Config {
	remote := remoteapi.DefaultConfig()
	if c.Address != "" {
		remote.Address = c.Address
	}
	if c.Port != 0 {
		remote.Port = c.Port
	}
	if c.TimeoutMs > 0 {
		remote.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	}
	if c.CommThreadCycle > 0 {
		remote.CommThreadCycle = time.Duration(c.CommThreadCycle) * time.Millisecond
	}
	return remote
}

// ImageTimeout returns the bound on a camera frame wait, zero for none.
func (c Config) ImageTimeout() time.Duration {
	return time.Duration(c.ImageTimeoutMs) * time.Millisecond
}

// ImagePollInterval returns the delay between camera reads.
func (c Config) ImagePollInterval() time.Duration {
	if c.ImagePollIntervalMs <= 0 {
		return time.Millisecond
	}
	return time.Duration(c.ImagePollIntervalMs) * time.Millisecond
}

// LoadConfigFrom loads configuration from a specific file.
// Files ending in .yaml or .yml are read as YAML, everything else as JSON.
// Fields missing from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Scene = cfg.Scene.withDefaults()
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
