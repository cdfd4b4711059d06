// Package config holds the persisted panel configuration and the settings
// tree the host renders for it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daviddao/crane_viewer/internal/history"
	"github.com/daviddao/crane_viewer/internal/namespace"
)

const (
	DefaultBackgroundColor = "#FFFFFF"
	DefaultFieldColor      = "#00FF00"
	DefaultGridSize        = 100.0
	DefaultViewBoxWidth    = 10000.0
	// ViewBoxAspectRatio is height/width of the default viewbox.
	ViewBoxAspectRatio   = 0.6
	DefaultSnapshotTopic = "/aggregated_svgs"
	DefaultUpdateTopic   = "/aggregated_svgs_updates"
	DefaultRefereeTopic  = "/referee"
)

// Config is the panel configuration.
type Config struct {
	BackgroundColor   string                          `yaml:"background_color"`
	FieldColor        string                          `yaml:"field_color"`
	ShowGrid          bool                            `yaml:"show_grid"`
	GridSize          float64                         `yaml:"grid_size"`
	ViewBoxWidth      float64                         `yaml:"viewbox_width"`
	SnapshotTopic     string                          `yaml:"snapshot_topic"`
	UpdateTopic       string                          `yaml:"update_topic"`
	RefereeTopic      string                          `yaml:"referee_topic"`
	UpdateEnabled     bool                            `yaml:"update_enabled"`
	ScoreboardEnabled bool                            `yaml:"scoreboard_enabled"`
	HistorySeconds    float64                         `yaml:"history_seconds"`
	HistoryMaxCount   int                             `yaml:"history_max_count"`
	Namespaces        map[string]namespace.NodeConfig `yaml:"namespaces,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BackgroundColor:   DefaultBackgroundColor,
		FieldColor:        DefaultFieldColor,
		GridSize:          DefaultGridSize,
		ViewBoxWidth:      DefaultViewBoxWidth,
		SnapshotTopic:     DefaultSnapshotTopic,
		UpdateTopic:       DefaultUpdateTopic,
		RefereeTopic:      DefaultRefereeTopic,
		UpdateEnabled:     true,
		ScoreboardEnabled: true,
		HistorySeconds:    history.DefaultMaxAge.Seconds(),
		HistoryMaxCount:   history.DefaultMaxCount,
	}
}

// defaults replaces invalid values with the built-in ones.
func (c *Config) defaults() {
	d := Default()
	if c.BackgroundColor == "" {
		c.BackgroundColor = d.BackgroundColor
	}
	if c.FieldColor == "" {
		c.FieldColor = d.FieldColor
	}
	if c.GridSize <= 0 {
		c.GridSize = d.GridSize
	}
	if c.ViewBoxWidth <= 0 {
		c.ViewBoxWidth = d.ViewBoxWidth
	}
	if c.SnapshotTopic == "" {
		c.SnapshotTopic = d.SnapshotTopic
	}
	if c.UpdateTopic == "" {
		c.UpdateTopic = d.UpdateTopic
	}
	if c.RefereeTopic == "" {
		c.RefereeTopic = d.RefereeTopic
	}
	if c.HistorySeconds <= 0 {
		c.HistorySeconds = d.HistorySeconds
	}
	if c.HistoryMaxCount <= 0 {
		c.HistoryMaxCount = d.HistoryMaxCount
	}
}

// HistoryMaxAge is HistorySeconds as a duration.
func (c Config) HistoryMaxAge() time.Duration {
	return time.Duration(c.HistorySeconds * float64(time.Second))
}

// ViewBox returns the SVG viewbox centred on the origin.
func (c Config) ViewBox() (x, y, w, h float64) {
	w = c.ViewBoxWidth
	h = w * ViewBoxAspectRatio
	return -w / 2, -h / 2, w, h
}

// DefaultPath returns ~/.config/crv/config.yaml (or the platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "crv", "config.yaml"), nil
}

// Load reads a YAML config file. Keys missing from the file keep their
// default; a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// Save writes cfg to path, replacing the file atomically.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config %s: %w", path, err)
	}
	return nil
}
