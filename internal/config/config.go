package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"capsolve/internal/solve"

	"gopkg.in/yaml.v3"
)

// Config holds all capsolve configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Proof search
	Solver SolverConfig `yaml:"solver"`

	// World file and watching
	World WorldConfig `yaml:"world"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SolverConfig bounds the search and the CLI's parallel evaluation.
type SolverConfig struct {
	OverflowDepth          int    `yaml:"overflow_depth"`
	MaxFixpointIterations  int    `yaml:"max_fixpoint_iterations"`
	CacheSize              int    `yaml:"cache_size"` // 0 disables the evaluation cache
	LookThroughProjections bool   `yaml:"look_through_projections"`
	Parallelism            int    `yaml:"parallelism"`   // goals solved concurrently
	QueryTimeout           string `yaml:"query_timeout"` // whole goal file
}

// WorldConfig locates the world file.
type WorldConfig struct {
	Path          string `yaml:"path"`
	WatchDebounce string `yaml:"watch_debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	d := solve.DefaultConfig()
	return &Config{
		Name:    "capsolve",
		Version: "0.3.0",

		Solver: SolverConfig{
			OverflowDepth:         d.OverflowDepth,
			MaxFixpointIterations: d.MaxFixpointIterations,
			CacheSize:             d.CacheSize,
			Parallelism:           defaultParallelism(),
			QueryTimeout:          "60s",
		},

		World: WorldConfig{
			Path:          "world.yaml",
			WatchDebounce: "200ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultParallelism() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	return n
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults if the config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparsable numbers and booleans
// are ignored.
func (c *Config) applyEnvOverrides() {
	if v, ok := envInt("CAPSOLVE_OVERFLOW_DEPTH"); ok {
		c.Solver.OverflowDepth = v
	}
	if v, ok := envInt("CAPSOLVE_PARALLELISM"); ok {
		c.Solver.Parallelism = v
	}
	if path := os.Getenv("CAPSOLVE_WORLD"); path != "" {
		c.World.Path = path
	}
	if level := os.Getenv("CAPSOLVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("CAPSOLVE_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetQueryTimeout returns the goal file timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Solver.QueryTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetWatchDebounce returns the quiet period after a world file change as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.World.WatchDebounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// ToSolve returns the solver's view of the configuration.
func (c *Config) ToSolve() solve.Config {
	return solve.Config{
		OverflowDepth:         c.Solver.OverflowDepth,
		MaxFixpointIterations: c.Solver.MaxFixpointIterations,
		CacheSize:             c.Solver.CacheSize,
		Policy:                solve.LookupPolicy{LookThroughProjections: c.Solver.LookThroughProjections},
	}
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Solver.OverflowDepth < 1 {
		return fmt.Errorf("solver.overflow_depth must be >= 1, got %d", c.Solver.OverflowDepth)
	}
	if c.Solver.MaxFixpointIterations < 1 {
		return fmt.Errorf("solver.max_fixpoint_iterations must be >= 1, got %d", c.Solver.MaxFixpointIterations)
	}
	if c.Solver.CacheSize < 0 {
		return fmt.Errorf("solver.cache_size must not be negative, got %d", c.Solver.CacheSize)
	}
	if c.Solver.Parallelism < 1 {
		return fmt.Errorf("solver.parallelism must be >= 1, got %d", c.Solver.Parallelism)
	}
	if _, err := time.ParseDuration(c.Solver.QueryTimeout); err != nil {
		return fmt.Errorf("solver.query_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.World.WatchDebounce); err != nil {
		return fmt.Errorf("world.watch_debounce: %w", err)
	}

	validLevel := false
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	switch c.Logging.Format {
	case "json", "console", "text":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}
