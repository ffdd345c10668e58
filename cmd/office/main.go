package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agent_office/internal/config"
)

var version = "dev"

type viewerFlags struct {
	configPath string
	addr       string
	locale     string
	fps        int
	remote     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags viewerFlags
	rootCmd := &cobra.Command{
		Use:          "office",
		Short:        "Watch the agent office in the terminal",
		Long:         "office renders the agent office scene from an officed backend: rooms per department, agents at their desks, deliveries and executive meetings.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if flags.addr != "" {
				cfg.Viewer.ServerAddr = flags.addr
			}
			if flags.fps > 0 {
				cfg.Viewer.FPS = flags.fps
			}
			if flags.remote {
				cfg.Viewer.RemoteAssets = true
			}
			return run(cmd.Context(), cfg, flags.locale)
		},
	}
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to config.toml (default: ~/.agent_office/config.toml)")
	rootCmd.Flags().StringVar(&flags.addr, "addr", "", "officed base URL override")
	rootCmd.Flags().StringVar(&flags.locale, "locale", "", "scene locale override")
	rootCmd.Flags().IntVar(&flags.fps, "fps", 0, "animation frames per second override")
	rootCmd.Flags().BoolVar(&flags.remote, "remote-assets", false, "fetch sprites from the backend instead of the embedded set")

	rootCmd.AddCommand(newVersionCmd())
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
