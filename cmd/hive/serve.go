package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hive/internal/config"
	"hive/internal/logging"
	"hive/internal/webui"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP/WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.ServeHost = host
			}
			if port != 0 {
				cfg.ServePort = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "gateway bind host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "gateway bind port (overrides config)")
	return cmd
}

func runServe(cfg *config.Config) error {
	controller := buildController(cfg)

	serverConfig := webui.DefaultServerConfig()
	serverConfig.Host = cfg.ServeHost
	serverConfig.Port = cfg.ServePort
	serverConfig.Debug = cfg.Debug

	logger := logging.NewComponentLogger("gateway")
	server := webui.NewServer(controller, serverConfig, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case <-stop:
		return server.Stop()
	}
}
