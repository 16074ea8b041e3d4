package logging

import (
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// File enables a rotated JSON log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output replaces stderr for the console encoder.
	Output zapcore.WriteSyncer
}

// New builds the process logger. Every entry carries rss_mb, the resident
// set size of the process at the time of the call. The returned func closes
// the file sink.
func New(cfg Config) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
		}
	}

	out := cfg.Output
	if out == nil {
		out = zapcore.Lock(os.Stderr)
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), out, level),
	}

	cleanup := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.TimeKey = "timestamp"
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(rotator), level))
		cleanup = func() { _ = rotator.Close() }
	}

	core := &memoryCore{Core: zapcore.NewTee(cores...), rss: residentMemoryMB}
	return zap.New(core, zap.AddCaller()), cleanup, nil
}

// memoryCore appends the process memory footprint to every written entry.
type memoryCore struct {
	zapcore.Core
	rss func() float64
}

func (c *memoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &memoryCore{Core: c.Core.With(fields), rss: c.rss}
}

func (c *memoryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *memoryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(fields)+1)
	all = append(all, fields...)
	all = append(all, zap.Float64("rss_mb", c.rss()))
	return c.Core.Write(ent, all)
}

// residentMemoryMB reads the RSS from /proc and falls back to the memory the
// Go runtime obtained from the OS where /proc is unavailable.
func residentMemoryMB() float64 {
	var bytes uint64
	if stat, err := selfStat(); err == nil {
		bytes = uint64(stat.ResidentMemory())
	} else {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		bytes = m.Sys
	}
	return math.Round(float64(bytes)/(1<<20)*100) / 100
}

func selfStat() (procfs.ProcStat, error) {
	p, err := procfs.Self()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	return p.Stat()
}
