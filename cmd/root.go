package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"tracker/config"
	"tracker/engine"
	"tracker/filter"
	"tracker/report"
	"tracker/ui"
)

type runFlags struct {
	configPath string
	filters    string
	ui         bool
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Associative memory tracker with exploit and drift diagnosis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(v), newConfigCmd(v))
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acquire/train/diagnose loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f.ui)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Config file (yaml, json or toml)")
	flags.StringVar(&f.filters, "filters", "", "Filter chain, e.g. noise,window:3:1")
	flags.BoolVar(&f.ui, "ui", false, "Show the terminal dashboard")
	flags.String("url", "", "Page to acquire words from")
	flags.Bool("mock", true, "Use generated words instead of HTTP")
	flags.Int("cycles", 0, "Stop after N cycles (0 runs until interrupted)")
	flags.Duration("interval", 0, "Pause between cycles")
	flags.String("pressure", "", "Pressure source: random or cpu")
	flags.Int64("seed", 0, "Seed for pruning and random pressure")
	flags.String("data", "", "Data directory for logs and reports")

	bind(v, flags.Lookup("url"), "acquire.url")
	bind(v, flags.Lookup("mock"), "acquire.mock")
	bind(v, flags.Lookup("cycles"), "engine.max_cycles")
	bind(v, flags.Lookup("interval"), "engine.interval")
	bind(v, flags.Lookup("pressure"), "pressure.source")
	bind(v, flags.Lookup("seed"), "engine.seed")
	bind(v, flags.Lookup("data"), "data_dir")
	return cmd
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Config file (yaml, json or toml)")
	return cmd
}

func loadConfig(v *viper.Viper, f runFlags) (*config.Config, error) {
	cfg, err := config.Load(v, f.configPath)
	if err != nil {
		return nil, err
	}
	if f.filters != "" {
		specs, err := filter.ParseList(f.filters)
		if err != nil {
			return nil, err
		}
		cfg.Filters = specs
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config, withUI bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "tracker.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	logger := log.New(io.MultiWriter(os.Stderr, logFile), "", log.Ltime)

	eng, err := engine.New(engine.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	eng.Observe(func(r report.Cycle) {
		if err := writeLastReport(cfg.DataDir, r); err != nil {
			logger.Printf("[REPORT] ⚠️ Could not persist report: %v", err)
		}
	})

	logger.Println("===========")
	logger.Println("  TRACKER")
	logger.Println("===========")
	logger.Printf("[TRACKER] Run %s, data directory %s", eng.RunID(), cfg.DataDir)

	if !withUI {
		return eng.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dash := ui.New(eng.RunID(), cancel)
	logger.SetOutput(io.MultiWriter(logFile, dash.LogWriter()))
	eng.Observe(dash.Observe)

	return superviseUI(ctx, cancel, eng, dash)
}

type runner interface {
	Run(ctx context.Context) error
}

type haltViewer interface {
	runner
	Halted(err error)
}

// superviseUI runs the engine and the dashboard side by side. A halted
// engine leaves the dashboard up so the halt reason stays readable; quitting
// the dashboard cancels ctx and stops the engine.
func superviseUI(ctx context.Context, cancel context.CancelFunc, eng runner, dash haltViewer) error {
	var engErr error
	var g errgroup.Group
	g.Go(func() error {
		engErr = eng.Run(ctx)
		dash.Halted(engErr)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return dash.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if errors.Is(engErr, context.Canceled) {
		return nil
	}
	return engErr
}

// writeLastReport keeps <data>/last_report.json in sync with the newest cycle.
func writeLastReport(dir string, r report.Cycle) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "last_report.json.tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, "last_report.json"))
}
