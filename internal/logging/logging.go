// Package logging provides categorized loggers for ioclens subsystems.
// Each category is a named zap logger; with a log directory configured,
// categories additionally write to per-category date-stamped files.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"
	CategoryScan      Category = "scan"
	CategorySources   Category = "sources"
	CategoryDiscovery Category = "discovery"
	CategoryBrowser   Category = "browser"
	CategoryStore     Category = "store"
)

// Config controls log output.
type Config struct {
	Level string `yaml:"level"` // debug, info, warn, error
	// Dir enables per-category log files when set.
	Dir string `yaml:"dir"`
	// JSON switches the console encoder to JSON.
	JSON bool `yaml:"json"`
}

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.Logger)
	cfg     Config
)

// Initialize builds the root logger. Must be called before Get; calling Get
// first yields no-op loggers.
func Initialize(c Config) error {
	level := zapcore.InfoLevel
	switch c.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	case "", "info":
	default:
		return fmt.Errorf("unknown log level %q", c.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if c.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)

	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	cfg = c
	base = zap.New(core)
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// Get returns (or creates) the logger for a category.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	root := base
	mu.RUnlock()

	if root == nil {
		return zap.NewNop()
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}

	l := root.Named(string(cat))
	if cfg.Dir != "" {
		if fileCore, err := fileCoreFor(cat); err == nil {
			l = l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
				return zapcore.NewTee(c, fileCore)
			}))
		} else {
			fmt.Fprintf(os.Stderr, "[logging] warning: could not open log file for %s: %v\n", cat, err)
		}
	}
	loggers[cat] = l
	return l
}

// fileCoreFor opens a date-prefixed per-category file core.
func fileCoreFor(cat Category) (zapcore.Core, error) {
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s.log", date, cat))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel), nil
}

// Sync flushes all loggers; call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
	for _, l := range loggers {
		_ = l.Sync()
	}
}
