// Package logging provides config-driven categorized loggers for capsolve.
// Logging is controlled by debug_mode in the logging config - when false, every category
// logger is a no-op.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot  Category = "boot"  // Startup, config loading
	CategorySolve Category = "solve" // Goal evaluation, assembly and merge
	CategoryWorld Category = "world" // World loading and relation queries
	CategoryCLI   Category = "cli"   // Command execution, file watching
)

// Categories lists every known category.
var Categories = []Category{CategoryBoot, CategorySolve, CategoryWorld, CategoryCLI}

// Settings mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Settings struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Format     string // json, console
	File       string // empty for stderr
	Categories map[string]bool
}

var (
	mu       sync.RWMutex
	settings Settings
	base     = zap.NewNop()
	loggers  = make(map[Category]*zap.Logger)
)

// Initialize builds the root logger from s. With debug mode off it installs a no-op logger
// and opens nothing.
func Initialize(s Settings) error {
	if !s.DebugMode {
		InitializeWith(zap.NewNop(), s)
		return nil
	}

	level, err := zap.ParseAtomicLevel(orDefault(s.Level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", s.Level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch orDefault(s.Format, "console") {
	case "json":
		cfg.Encoding = "json"
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return fmt.Errorf("invalid log format %q", s.Format)
	}
	out := orDefault(s.File, "stderr")
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	InitializeWith(l, s)

	boot := Get(CategoryBoot)
	boot.Info("logging initialized",
		zap.String("level", level.String()),
		zap.String("output", out))
	for _, c := range Categories {
		boot.Debug("category", zap.String("name", string(c)), zap.Bool("enabled", IsCategoryEnabled(c)))
	}
	return nil
}

// InitializeWith installs l as the root logger. Tests use it with an observer or zaptest
// logger.
func InitializeWith(l *zap.Logger, s Settings) {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	base = l
	settings = s
	loggers = make(map[Category]*zap.Logger)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return settings.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := zap.NewNop()
	if categoryEnabled(category) {
		l = base.Named(string(category))
	}
	loggers[category] = l
	return l
}

// WithRequestID returns a category logger that tags every entry with a correlation ID.
func WithRequestID(category Category, requestID string) *zap.Logger {
	return Get(category).With(zap.String("req", requestID))
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		Get(t.category).Debug("completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
