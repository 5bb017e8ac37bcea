package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hive/internal/config"
)

// Version is stamped at build time via -ldflags.
var Version = "0.3.0"

type rootFlags struct {
	configPath string
	backendURL string
	stateDir   string
	debug      bool
}

// NewRootCommand builds the hive command tree. Running the bare command
// starts the interactive chat loop.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "hive",
		Short:         "Multi-agent chat client",
		Long:          "hive is a terminal client and local gateway for a multi-agent chat backend,\nwith a built-in simulated orchestrator for offline use.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default ~/.hive/config.yaml)")
	root.PersistentFlags().StringVar(&flags.backendURL, "backend", "", "backend base URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.stateDir, "state-dir", "", "state directory (overrides config)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "verbose logging")

	root.AddCommand(newChatCommand(flags))
	root.AddCommand(newServeCommand(flags))
	root.AddCommand(newConfigCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

func newConfigCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the resolved configuration to disk",
		Long:  "Resolves configuration from defaults, environment and flags, then writes it\nto the config file so the current settings become persistent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := flags.configPath
			if target == "" {
				target = config.DefaultPath()
			}
			// The target may not exist yet; resolve from defaults and env in
			// that case instead of failing on the missing file.
			load := *flags
			if _, err := os.Stat(target); err != nil {
				load.configPath = ""
			}
			cfg, err := resolveConfig(&load)
			if err != nil {
				return err
			}
			if err := cfg.Save(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return nil
		},
	})
	return cmd
}

func newChatCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hive version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hive %s\n", Version)
		},
	}
}

// resolveConfig loads the file/env configuration and applies flag overrides.
func resolveConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.backendURL != "" {
		cfg.BackendURL = flags.backendURL
		cfg.WebSocketURL = config.DeriveWebSocketURL(flags.backendURL)
	}
	if flags.stateDir != "" {
		cfg.StateDir = flags.stateDir
	}
	if flags.debug {
		cfg.Debug = true
	}
	return cfg, nil
}
