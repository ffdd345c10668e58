package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"agent_office/internal/config"
	"agent_office/internal/messaging/inproc"
	"agent_office/internal/server"
	"agent_office/internal/simulator"
	sqlitestore "agent_office/internal/store/sqlite"
)

var version = "dev"

type serveFlags struct {
	configPath string
	addr       string
	dbPath     string
	noSim      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags serveFlags
	rootCmd := &cobra.Command{
		Use:          "officed",
		Short:        "Serve the agent office backend",
		Long:         "officed keeps the office state in sqlite, runs the demo simulator and serves snapshots, the event stream and sprite assets over HTTP.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, !flags.noSim)
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.toml (default: ~/.agent_office/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlite database path override")
	rootCmd.Flags().StringVar(&flags.addr, "addr", "", "http listen address override")
	rootCmd.Flags().BoolVar(&flags.noSim, "no-sim", false, "serve the seeded office without simulated activity")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSeedCmd(&flags),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func newSeedCmd(flags *serveFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo departments and agents and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			if err := simulator.Seed(cmd.Context(), store); err != nil {
				return fmt.Errorf("seed office: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", cfg.Server.DBPath)
			return err
		},
	}
}

func loadConfig(flags serveFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.dbPath != "" {
		cfg.Server.DBPath = flags.dbPath
	}
	cfg.Server.DBPath = filepath.Clean(cfg.Server.DBPath)
	return cfg, nil
}

func openStore(ctx context.Context, dbPath string) (*sqlitestore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return store, nil
}

func serve(parent context.Context, cfg config.Config, simulate bool) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()
	if err := simulator.Seed(ctx, store); err != nil {
		return fmt.Errorf("seed office: %w", err)
	}

	bus := inproc.New(256)

	if simulate {
		sim := simulator.New(store, bus, simulator.Config{
			Interval:      cfg.Server.SimulatorInterval.Duration,
			BreakSchedule: cfg.Server.BreakSchedule,
			BreakLength:   cfg.Server.BreakLength.Duration,
			MeetingSeats:  cfg.Scene.Layout.MeetingSeats,
			SpeakDelay:    cfg.Server.SpeakDelay.Duration,
		}, log.Default())
		if err := sim.Start(ctx); err != nil {
			return fmt.Errorf("start simulator: %w", err)
		}
		defer func() {
			cancel()
			sim.Wait()
		}()
	}

	log.Printf(
		"agent_office started addr=%s db=%s locale=%s simulate=%t",
		cfg.Server.Addr,
		cfg.Server.DBPath,
		cfg.Server.Locale,
		simulate,
	)

	return server.Start(ctx, cfg.Server.Addr, server.Options{
		Store:          store,
		Bus:            bus,
		Locale:         cfg.Server.Locale,
		StreamInterval: cfg.Server.StreamInterval.Duration,
		Logger:         log.Default(),
	})
}
