package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DateLayout is the layout of start_date and end_date.
const DateLayout = "2006-01-02"

var ErrInvalidWindow = errors.New("invalid time interval")

type Config struct {
	Analyzer    string  `mapstructure:"analyzer"`
	Backend     Backend `mapstructure:"backend"`
	Threshold   int     `mapstructure:"threshold"`
	StartDate   string  `mapstructure:"start_date"`
	EndDate     string  `mapstructure:"end_date"`
	Delta       int     `mapstructure:"delta"`
	Delay       int     `mapstructure:"delay"`
	Peak        Peak    `mapstructure:"peak"`
	Store       Store   `mapstructure:"store"`
	Output      string  `mapstructure:"output"`
	MetricsFile string  `mapstructure:"metrics_file"`
	Serve       Serve   `mapstructure:"serve"`
	Log         Log     `mapstructure:"log"`
}

type Backend struct {
	Kind  string `mapstructure:"kind"`
	Input string `mapstructure:"input"`
}

type Peak struct {
	LocalMinCount     int     `mapstructure:"local_min_count"`
	GlobalCountWeight float64 `mapstructure:"global_count_weight"`
	MinSampSubRatio   float64 `mapstructure:"min_samp_sub_ratio"`
	StdWeight         float64 `mapstructure:"std_weight"`
}

type Store struct {
	Kind          string        `mapstructure:"kind"`
	Path          string        `mapstructure:"path"`
	PeaksPath     string        `mapstructure:"peaks_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisKey      string        `mapstructure:"redis_key"`
	PeaksTTL      time.Duration `mapstructure:"peaks_ttl"`
}

type Serve struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// New returns a viper instance carrying the defaults and reading
// PEAK_ANALYZER_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the merged result. An empty
// file searches the working directory and /etc/peak-analyzer for a
// peak_analyzer.* file and carries on without one.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("peak_analyzer")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/peak-analyzer/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Analyzer == "" {
		return errors.New("analyzer must be set")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", c.Threshold)
	}
	if c.Delta <= 0 {
		return fmt.Errorf("delta must be positive, got %d", c.Delta)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %d", c.Delay)
	}
	switch c.Store.Kind {
	case "file":
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the file store")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr must be set for the redis store")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// Window resolves the analysis window relative to now.
func (c *Config) Window(now time.Time) (time.Time, time.Time, error) {
	return ResolveWindow(c.StartDate, c.EndDate, c.Delta, c.Delay, now)
}

// ResolveWindow returns [start, end) at UTC midnight. When both dates are
// given they are used as is; otherwise end is today minus delay days and
// start is delta days before end.
func ResolveWindow(startDate, endDate string, delta, delay int, now time.Time) (time.Time, time.Time, error) {
	if startDate != "" && endDate != "" {
		start, err := parseDate(startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := parseDate(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w %s - %s", ErrInvalidWindow, startDate, endDate)
		}
		return start, end, nil
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, -delay)
	return end.AddDate(0, 0, -delta), end, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a valid date: %q", s)
	}
	return t, nil
}
