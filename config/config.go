package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tracker/filter"
	"tracker/pattern"
	"tracker/train"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Train     TrainConfig     `mapstructure:"train"`
	Pressure  PressureConfig  `mapstructure:"pressure"`
	Diagnosis DiagnosisConfig `mapstructure:"diagnosis"`
	Acquire   AcquireConfig   `mapstructure:"acquire"`
	Filters   []filter.Spec   `mapstructure:"filters"`
	DataDir   string          `mapstructure:"data_dir"`
}

type EngineConfig struct {
	PatternLength int           `mapstructure:"pattern_length"`
	ComplexityCap int           `mapstructure:"complexity_cap"`
	Interval      time.Duration `mapstructure:"interval"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff"`
	// MaxCycles stops the loop after that many cycles; 0 runs until cancelled.
	MaxCycles int `mapstructure:"max_cycles"`
	// FaultAtCycle simulates an integrity collapse at that cycle; 0 disables it.
	FaultAtCycle int   `mapstructure:"fault_at_cycle"`
	Seed         int64 `mapstructure:"seed"`
}

type MemoryConfig struct {
	MinPartners       int  `mapstructure:"min_partners"`
	MaxPartners       int  `mapstructure:"max_partners"`
	BruteForceContext bool `mapstructure:"brute_force_context"`
	Contexts          int  `mapstructure:"contexts"`
}

type TrainConfig struct {
	TreeInput int `mapstructure:"tree_input"`
	MaxRaw    int `mapstructure:"max_raw"`
}

type PressureConfig struct {
	Source        string  `mapstructure:"source"`
	PruneFraction float64 `mapstructure:"prune_fraction"`
}

type DiagnosisConfig struct {
	SampleSize      int    `mapstructure:"sample_size"`
	InjectionSum    int    `mapstructure:"injection_sum"`
	DriftWindow     int    `mapstructure:"drift_window"`
	DriftWarmup     int    `mapstructure:"drift_warmup"`
	PrivilegedSum   int    `mapstructure:"privileged_sum"`
	PrivilegedLabel string `mapstructure:"privileged_label"`
}

type AcquireConfig struct {
	URL       string        `mapstructure:"url"`
	Mock      bool          `mapstructure:"mock"`
	Limit     int           `mapstructure:"limit"`
	Attempts  int           `mapstructure:"attempts"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			PatternLength: pattern.DefaultLength,
			ComplexityCap: 10,
			Interval:      500 * time.Millisecond,
			ErrorBackoff:  2 * time.Second,
			Seed:          1,
		},
		Memory: MemoryConfig{
			MinPartners:       2,
			MaxPartners:       16,
			BruteForceContext: true,
			Contexts:          2,
		},
		Train: TrainConfig{
			TreeInput: pattern.MaxTreeInput,
			MaxRaw:    pattern.DefaultMaxRaw,
		},
		Pressure: PressureConfig{
			Source:        "random",
			PruneFraction: 0.3,
		},
		Diagnosis: DiagnosisConfig{
			SampleSize:      32,
			InjectionSum:    1_000_000_007,
			DriftWindow:     8,
			DriftWarmup:     3,
			PrivilegedSum:   210,
			PrivilegedLabel: "ACCESS_GRANTED",
		},
		Acquire: AcquireConfig{
			URL:       "http://localhost:8080/",
			Mock:      true,
			Limit:     3,
			Attempts:  3,
			Timeout:   10 * time.Second,
			BaseDelay: 500 * time.Millisecond,
		},
		DataDir: ".tracker",
	}
}

// ContextMultiplier is the factor applied to every store lookup.
func (c *Config) ContextMultiplier() int {
	if c.Memory.BruteForceContext && c.Memory.Contexts > 0 {
		return c.Memory.Contexts
	}
	return 1
}

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Engine.PatternLength > 0, "engine.pattern_length must be positive, got %d", c.Engine.PatternLength)
	check(c.Engine.ComplexityCap > 0 && c.Engine.ComplexityCap <= pattern.MaxComplexityCap,
		"engine.complexity_cap must be in [1,%d], got %d", pattern.MaxComplexityCap, c.Engine.ComplexityCap)
	check(c.Engine.Interval >= 0, "engine.interval must not be negative")
	check(c.Memory.MinPartners >= 1, "memory.min_partners must be at least 1, got %d", c.Memory.MinPartners)
	check(c.Memory.MaxPartners >= c.Memory.MinPartners,
		"memory.max_partners (%d) below min_partners (%d)", c.Memory.MaxPartners, c.Memory.MinPartners)
	check(c.Train.TreeInput >= 0 && c.Train.TreeInput <= pattern.MaxTreeInput,
		"train.tree_input must be in [0,%d], got %d", pattern.MaxTreeInput, c.Train.TreeInput)
	check(c.Train.MaxRaw > 0 && c.Train.MaxRaw <= train.MaxRawPatterns,
		"train.max_raw must be in [1,%d], got %d", train.MaxRawPatterns, c.Train.MaxRaw)
	check(c.Pressure.Source == "random" || c.Pressure.Source == "cpu",
		"pressure.source must be random or cpu, got %q", c.Pressure.Source)
	check(c.Pressure.PruneFraction >= 0 && c.Pressure.PruneFraction <= 1,
		"pressure.prune_fraction must be in [0,1], got %f", c.Pressure.PruneFraction)
	check(c.Diagnosis.PrivilegedSum > 0, "diagnosis.privileged_sum must be positive")
	check(c.Diagnosis.InjectionSum > 0, "diagnosis.injection_sum must be positive")
	check(c.Acquire.Mock || c.Acquire.URL != "", "acquire.url is required unless acquire.mock is set")

	for _, s := range c.Filters {
		if _, err := filter.New(s); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NewViper returns a viper instance seeded with the defaults and reading
// TRACKER_* environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("engine.pattern_length", d.Engine.PatternLength)
	v.SetDefault("engine.complexity_cap", d.Engine.ComplexityCap)
	v.SetDefault("engine.interval", d.Engine.Interval)
	v.SetDefault("engine.error_backoff", d.Engine.ErrorBackoff)
	v.SetDefault("engine.max_cycles", d.Engine.MaxCycles)
	v.SetDefault("engine.fault_at_cycle", d.Engine.FaultAtCycle)
	v.SetDefault("engine.seed", d.Engine.Seed)

	v.SetDefault("memory.min_partners", d.Memory.MinPartners)
	v.SetDefault("memory.max_partners", d.Memory.MaxPartners)
	v.SetDefault("memory.brute_force_context", d.Memory.BruteForceContext)
	v.SetDefault("memory.contexts", d.Memory.Contexts)

	v.SetDefault("train.tree_input", d.Train.TreeInput)
	v.SetDefault("train.max_raw", d.Train.MaxRaw)

	v.SetDefault("pressure.source", d.Pressure.Source)
	v.SetDefault("pressure.prune_fraction", d.Pressure.PruneFraction)

	v.SetDefault("diagnosis.sample_size", d.Diagnosis.SampleSize)
	v.SetDefault("diagnosis.injection_sum", d.Diagnosis.InjectionSum)
	v.SetDefault("diagnosis.drift_window", d.Diagnosis.DriftWindow)
	v.SetDefault("diagnosis.drift_warmup", d.Diagnosis.DriftWarmup)
	v.SetDefault("diagnosis.privileged_sum", d.Diagnosis.PrivilegedSum)
	v.SetDefault("diagnosis.privileged_label", d.Diagnosis.PrivilegedLabel)

	v.SetDefault("acquire.url", d.Acquire.URL)
	v.SetDefault("acquire.mock", d.Acquire.Mock)
	v.SetDefault("acquire.limit", d.Acquire.Limit)
	v.SetDefault("acquire.attempts", d.Acquire.Attempts)
	v.SetDefault("acquire.timeout", d.Acquire.Timeout)
	v.SetDefault("acquire.base_delay", d.Acquire.BaseDelay)

	v.SetDefault("data_dir", d.DataDir)

	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads an optional config file into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
