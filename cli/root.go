package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"telemetry-peak-analyzer/analytics"
	"telemetry-peak-analyzer/backends"
	"telemetry-peak-analyzer/config"
	"telemetry-peak-analyzer/logging"
	"telemetry-peak-analyzer/store"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=".
var Version = "dev"

type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

// Execute runs the command tree against os.Args. SIGINT and SIGTERM cancel
// the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{
		v:      config.New(),
		stdout: out,
		stderr: errOut,
		now:    time.Now,
	}

	cmd := &cobra.Command{
		Use:           "peak-analyzer",
		Short:         "Detect peaks in file submission telemetry",
		Long:          "peak-analyzer compares a window of telemetry against a persisted baseline per dimension pair, reports the pairs that spike and folds the window into the baseline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, toml, json or ini)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.StringP("analyzer", "a", config.DefaultAnalyzer, fmt.Sprintf("analyzer profile %v", analytics.ProfileNames()))
	flags.StringP("backend", "b", config.DefaultBackendKind, fmt.Sprintf("backend kind %v", backends.Kinds()))
	flags.StringP("backend-input", "n", "", "backend input, a file glob for the json backend")
	flags.StringP("global-table", "m", config.DefaultStorePath, "baseline file of the file store")
	flags.String("peaks-file", config.DefaultStorePeaksPath, "latest peaks file of the file store")
	flags.String("store", config.DefaultStoreKind, "baseline store (file, redis)")
	flags.String("redis-addr", config.DefaultRedisAddr, "redis address of the redis store")
	flags.String("redis-key", config.DefaultRedisKey, "key prefix of the redis store")
	flags.String("log-file", "", "also write JSON logs to this rotated file")
	a.bind(flags, map[string]string{
		config.KeyAnalyzer:       "analyzer",
		config.KeyBackendKind:    "backend",
		config.KeyBackendInput:   "backend-input",
		config.KeyStorePath:      "global-table",
		config.KeyStorePeaksPath: "peaks-file",
		config.KeyStoreKind:      "store",
		config.KeyStoreRedisAddr: "redis-addr",
		config.KeyStoreRedisKey:  "redis-key",
		config.KeyLogFile:        "log-file",
	})

	cmd.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newConvertCmd(a),
		newAnonymizeCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// setup loads the configuration and builds the logger shared by the
// analysis commands. The returned func flushes and closes the logger.
func (a *app) setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Config{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     zapcore.AddSync(a.stderr),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = logger.Sync()
		closeLog()
	}
	return cfg, logger, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.New(ctx, store.Config{
		Kind:      store.Kind(cfg.Store.Kind),
		Path:      cfg.Store.Path,
		PeaksPath: cfg.Store.PeaksPath,
		Redis: store.RedisOptions{
			Addr:      cfg.Store.RedisAddr,
			Password:  cfg.Store.RedisPassword,
			DB:        cfg.Store.RedisDB,
			KeyPrefix: cfg.Store.RedisKey,
			PeaksTTL:  cfg.Store.PeaksTTL,
		},
	})
}

func newAnalyzer(cfg *config.Config, logger *zap.Logger, start, end time.Time) (*analytics.Analyzer, error) {
	if cfg.Backend.Input == "" {
		return nil, fmt.Errorf("%s is required", config.KeyBackendInput)
	}
	profile, err := analytics.LookupProfile(cfg.Analyzer)
	if err != nil {
		return nil, err
	}
	backend, err := backends.New(backends.Kind(cfg.Backend.Kind), cfg.Backend.Input, logger)
	if err != nil {
		return nil, err
	}
	return analytics.NewAnalyzer(backend, profile, start, end,
		analytics.WithLogger(logger),
		analytics.WithPeakConfig(analytics.PeakConfig{
			LocalMinCount:     cfg.Peak.LocalMinCount,
			GlobalCountWeight: cfg.Peak.GlobalCountWeight,
			MinSampSubRatio:   cfg.Peak.MinSampSubRatio,
			StdWeight:         cfg.Peak.StdWeight,
		}),
	)
}
