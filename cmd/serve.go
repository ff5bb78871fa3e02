package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"webtoondl/config"
	"webtoondl/logging"
	"webtoondl/server"
)

var flagBind string

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP download service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagBind, "bind", "", "listen address, overrides server.bind")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagBind != "" {
		cfg.Server.Bind = flagBind
	}

	closeLog, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Printf("[Main] %s", config.VersionString())

	manager, err := newManager(cfg, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := server.New(manager, server.OptionsFromConfig(cfg))
	return server.Run(ctx, e, cfg.Server.Bind)
}
