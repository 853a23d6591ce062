// Package config loads overview settings from TOML or YAML files.
//
// [Default] is the single source of truth for default values. [Load] reads
// a file on top of the defaults, choosing the decoder by extension, and
// validates the result:
//
//	cfg, err := config.Load("overview.toml")
//	eng, err := layout.New(cfg.Layout.Engine(logger))
//
// An example TOML file:
//
//	[layout]
//	strategy = "spring-column-extended"
//	leaf_bound = 20
//
//	[drain]
//	batch_size = 128
//	interval = "25ms"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/layout"
)

// Config is the complete set of settings.
type Config struct {
	Layout LayoutConfig `toml:"layout" yaml:"layout"`
	Scan   ScanConfig   `toml:"scan" yaml:"scan"`
	Drain  DrainConfig  `toml:"drain" yaml:"drain"`
	Serve  ServeConfig  `toml:"serve" yaml:"serve"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
}

// LayoutConfig mirrors layout.Config.
type LayoutConfig struct {
	Strategy          string   `toml:"strategy" yaml:"strategy"`
	LeafBound         float64  `toml:"leaf_bound" yaml:"leaf_bound"`
	MaxAngle          float64  `toml:"max_angle" yaml:"max_angle"`
	MinColumnWidth    float64  `toml:"min_column_width" yaml:"min_column_width"`
	StiffnessX        float64  `toml:"stiffness_x" yaml:"stiffness_x"`
	StiffnessY        float64  `toml:"stiffness_y" yaml:"stiffness_y"`
	DampingX          float64  `toml:"damping_x" yaml:"damping_x"`
	DampingY          float64  `toml:"damping_y" yaml:"damping_y"`
	Jitter            float64  `toml:"jitter" yaml:"jitter"`
	MinAlpha          float64  `toml:"min_alpha" yaml:"min_alpha"`
	CoolDown          int      `toml:"cool_down" yaml:"cool_down"`
	Frame             Duration `toml:"frame" yaml:"frame"`
	Seed              uint64   `toml:"seed" yaml:"seed"`
	CompactLeafFactor float64  `toml:"compact_leaf_factor" yaml:"compact_leaf_factor"`
	HitRadius         float64  `toml:"hit_radius" yaml:"hit_radius"`
}

// ScanConfig controls the directory scanner and watcher.
type ScanConfig struct {
	MaxChildren    int      `toml:"max_children" yaml:"max_children"`
	FollowSymlinks bool     `toml:"follow_symlinks" yaml:"follow_symlinks"`
	Ignore         []string `toml:"ignore" yaml:"ignore"`
	Debounce       Duration `toml:"debounce" yaml:"debounce"`
}

// DrainConfig controls how queued scanner messages reach the tree.
type DrainConfig struct {
	BatchSize int      `toml:"batch_size" yaml:"batch_size"`
	Interval  Duration `toml:"interval" yaml:"interval"`
}

// ServeConfig controls the HTTP API.
type ServeConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// CacheConfig selects the snapshot cache backend.
type CacheConfig struct {
	Backend   string   `toml:"backend" yaml:"backend"`
	Dir       string   `toml:"dir" yaml:"dir"`
	RedisAddr string   `toml:"redis_addr" yaml:"redis_addr"`
	TTL       Duration `toml:"ttl" yaml:"ttl"`
}

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Default returns the default configuration.
func Default() Config {
	l := layout.DefaultConfig()
	return Config{
		Layout: LayoutConfig{
			Strategy:          string(l.Strategy),
			LeafBound:         l.LeafBound,
			MaxAngle:          l.MaxAngle,
			MinColumnWidth:    l.MinColumnWidth,
			StiffnessX:        l.StiffnessX,
			StiffnessY:        l.StiffnessY,
			DampingX:          l.DampingX,
			DampingY:          l.DampingY,
			Jitter:            l.Jitter,
			MinAlpha:          l.MinAlpha,
			CoolDown:          l.CoolDown,
			Frame:             Duration(l.Frame),
			Seed:              l.Seed,
			CompactLeafFactor: l.CompactLeafFactor,
			HitRadius:         12,
		},
		Scan: ScanConfig{
			MaxChildren: 256,
			Ignore:      []string{".git", "node_modules"},
			Debounce:    Duration(200 * time.Millisecond),
		},
		Drain: DrainConfig{
			BatchSize: 64,
			Interval:  Duration(50 * time.Millisecond),
		},
		Serve: ServeConfig{Addr: ":8080"},
		Cache: CacheConfig{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			TTL:       Duration(24 * time.Hour),
		},
	}
}

// Engine converts the layout section for layout.New.
func (c LayoutConfig) Engine(logger *log.Logger) layout.Config {
	return layout.Config{
		Strategy:          layout.Strategy(c.Strategy),
		LeafBound:         c.LeafBound,
		MaxAngle:          c.MaxAngle,
		MinColumnWidth:    c.MinColumnWidth,
		StiffnessX:        c.StiffnessX,
		StiffnessY:        c.StiffnessY,
		DampingX:          c.DampingX,
		DampingY:          c.DampingY,
		Jitter:            c.Jitter,
		MinAlpha:          c.MinAlpha,
		CoolDown:          c.CoolDown,
		Frame:             time.Duration(c.Frame),
		Seed:              c.Seed,
		CompactLeafFactor: c.CompactLeafFactor,
		Logger:            logger,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "overview", "config.toml"), nil
}

// Load reads path on top of Default and validates the result. An empty path
// means DefaultPath; a missing file there is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode parses data into cfg using the decoder for ext (".toml", ".yaml",
// ".yml"). Keys absent from data keep their current values.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q", ext)
}

// Encode writes cfg in the format for ext.
func Encode(cfg Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q", ext)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(layout.Strategies(), layout.Strategy(c.Layout.Strategy)) {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.strategy: unknown strategy %q", c.Layout.Strategy)
	}
	if c.Layout.MaxAngle <= 0 || c.Layout.MaxAngle >= 90 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.max_angle must be in (0, 90), got %v", c.Layout.MaxAngle)
	}
	if c.Layout.Jitter < 0 || c.Layout.Jitter >= 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.jitter must be in [0, 1), got %v", c.Layout.Jitter)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"layout.leaf_bound", c.Layout.LeafBound},
		{"layout.min_column_width", c.Layout.MinColumnWidth},
		{"layout.stiffness_x", c.Layout.StiffnessX},
		{"layout.stiffness_y", c.Layout.StiffnessY},
		{"layout.damping_x", c.Layout.DampingX},
		{"layout.damping_y", c.Layout.DampingY},
		{"layout.min_alpha", c.Layout.MinAlpha},
		{"layout.hit_radius", c.Layout.HitRadius},
	} {
		if f.v <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be positive, got %v", f.name, f.v)
		}
	}
	if c.Layout.CoolDown <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.cool_down must be positive")
	}
	if c.Layout.Frame <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.frame must be positive")
	}
	if c.Scan.MaxChildren <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scan.max_children must be positive")
	}
	if c.Drain.BatchSize <= 0 || c.Drain.Interval <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "drain.batch_size and drain.interval must be positive")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend: unknown backend %q", c.Cache.Backend)
	}
	return nil
}

// Duration is a time.Duration written as a string ("50ms") in config files.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
