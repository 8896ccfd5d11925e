// Package logging provides categorized logging for omegagen.
// Each pipeline stage logs under its own category so a noisy stage can be
// silenced without losing the others. Loggers are no-ops until Initialize or
// Attach is called, which keeps library use of the pipeline silent.
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
	CategoryBoot     Category = "boot"     // CLI startup, config loading
	CategoryRelation Category = "relation" // Preprocessing, parsing, classification
	CategoryCanon    Category = "canon"    // Uninterpreted-function canonicalization
	CategoryScript   Category = "script"   // Script assembly, accumulator widening
	CategoryEngine   Category = "engine"   // omegacalc invocations
	CategoryStore    Category = "store"    // Session persistence
	CategoryFacts    Category = "facts"    // Mangle inspection
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty means stderr
	Categories map[string]bool // missing categories are enabled
	Verbose    bool            // forces debug level
	Color      bool            // colored levels, console format only
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	options Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from opts: production settings,
// console encoding with ISO8601 timestamps when Format is "console".
func Initialize(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if opts.Color {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = level
	}
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	Attach(l, opts)
	return nil
}

// Attach installs an existing zap logger as the root, e.g. the one built by
// the CLI or an observer in tests.
func Attach(l *zap.Logger, opts Options) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	root = l
	options = opts
	loggers = make(map[Category]*Logger)
}

// Root returns the root zap logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Reset returns logging to the silent default.
func Reset() {
	Attach(nil, Options{})
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if options.Categories == nil {
		return true
	}
	enabled, exists := options.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
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

	base := zap.NewNop()
	if categoryEnabledLocked(category) {
		base = root.Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.sugar.Desugar().Core().Enabled(level)
}

// Sync flushes the root logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return root.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Relation logs to the relation category
func Relation(format string, args ...interface{}) {
	Get(CategoryRelation).Info(format, args...)
}

// RelationDebug logs debug to the relation category
func RelationDebug(format string, args ...interface{}) {
	Get(CategoryRelation).Debug(format, args...)
}

// Canon logs to the canon category
func Canon(format string, args ...interface{}) {
	Get(CategoryCanon).Info(format, args...)
}

// CanonDebug logs debug to the canon category
func CanonDebug(format string, args ...interface{}) {
	Get(CategoryCanon).Debug(format, args...)
}

// Script logs to the script category
func Script(format string, args ...interface{}) {
	Get(CategoryScript).Info(format, args...)
}

// ScriptDebug logs debug to the script category
func ScriptDebug(format string, args ...interface{}) {
	Get(CategoryScript).Debug(format, args...)
}

// Engine logs to the engine category
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Info(format, args...)
}

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debug(format, args...)
}

// EngineWarn logs a warning to the engine category
func EngineWarn(format string, args ...interface{}) {
	Get(CategoryEngine).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Facts logs to the facts category
func Facts(format string, args ...interface{}) {
	Get(CategoryFacts).Info(format, args...)
}

// FactsDebug logs debug to the facts category
func FactsDebug(format string, args ...interface{}) {
	Get(CategoryFacts).Debug(format, args...)
}

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures one operation for a category.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
