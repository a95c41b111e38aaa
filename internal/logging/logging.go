// Package logging builds the zap loggers used across the node: a global
// level, per-category overrides, an optional rotated log file and a callback
// sink for embedders.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Categories a component logger can be named after.
const (
	CategoryAll          = "all"
	CategoryBench        = "bench"
	CategoryBlockStorage = "blockstorage"
	CategoryCoinDB       = "coindb"
	CategoryLevelDB      = "leveldb"
	CategoryMempool      = "mempool"
	CategoryPrune        = "prune"
	CategoryRand         = "rand"
	CategoryReindex      = "reindex"
	CategoryValidation   = "validation"
	CategoryKernel       = "kernel"
)

var categories = []string{
	CategoryAll, CategoryBench, CategoryBlockStorage, CategoryCoinDB, CategoryLevelDB,
	CategoryMempool, CategoryPrune, CategoryRand, CategoryReindex, CategoryValidation, CategoryKernel,
}

// LevelNone disables a category.
const LevelNone = zapcore.FatalLevel + 1

// Config is embedded into command line configs as a flag group.
type Config struct {
	Level       string   `long:"level" env:"LEVEL" default:"info" description:"log level: trace, debug, info, warn, error, fatal or none"`
	Categories  []string `long:"category" env:"CATEGORIES" env-delim:"," description:"per-category level as category=level, repeatable"`
	File        string   `long:"file" env:"FILE" description:"also write logs to this file, rotated by size"`
	MaxSizeMB   int      `long:"max-size-mb" env:"MAX_SIZE_MB" default:"10" description:"rotate the log file after this many megabytes"`
	MaxFiles    int      `long:"max-files" env:"MAX_FILES" default:"3" description:"number of rotated log files to keep"`
	Development bool     `long:"development" env:"DEVELOPMENT" description:"human readable console output"`
}

// ParseLevel maps a level name to a zap level. trace is an alias of debug.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	case "none", "off":
		return LevelNone, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseCategories parses category=level pairs. The "all" category replaces
// the global level.
func ParseCategories(pairs []string) (map[string]zapcore.Level, error) {
	out := make(map[string]zapcore.Level, len(pairs))
	for _, pair := range pairs {
		name, lvl, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("category %q: want category=level", pair)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if !knownCategory(name) {
			return nil, fmt.Errorf("unknown log category %q", name)
		}
		level, err := ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		out[name] = level
	}
	return out, nil
}

func knownCategory(name string) bool {
	for _, c := range categories {
		if c == name {
			return true
		}
	}
	return false
}

// New builds a logger for cfg. The returned close function syncs the logger
// and closes the log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	levels, err := ParseCategories(cfg.Categories)
	if err != nil {
		return nil, nil, err
	}
	if all, ok := levels[CategoryAll]; ok {
		level = all
		delete(levels, CategoryAll)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encoder := zapcore.NewJSONEncoder(encCfg)
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	floor := minLevel(level, levels)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), floor),
	}
	closers := []func() error{}

	if cfg.File != "" {
		r, err := newRotator(cfg.File, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(r), floor))
		closers = append(closers, r.Close)
	}

	core := NewCategoryCore(zapcore.NewTee(cores...), level, levels)
	logger := zap.New(core, zap.AddCaller())
	closeFn := func() error {
		_ = logger.Sync()
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return logger, closeFn, nil
}

func newRotator(path string, maxSizeMB, maxFiles int) (*rotator.Rotator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = 3
	}
	r, err := rotator.New(path, int64(maxSizeMB*1024), false, maxFiles)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	return r, nil
}

func minLevel(def zapcore.Level, levels map[string]zapcore.Level) zapcore.Level {
	floor := def
	for _, l := range levels {
		floor = min(floor, l)
	}
	return floor
}
