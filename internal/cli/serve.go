package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/clipper/internal/server"
)

func newServeCommand(e *env) *cobra.Command {
	var (
		addr            string
		staticDir       string
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if staticDir != "" {
				cfg.StaticDir = staticDir
			}

			logger, syncLogger, err := e.logger(cfg, false)
			if err != nil {
				return err
			}
			defer syncLogger()

			srv, err := server.NewServer(server.Config{
				AppConfig: cfg,
				Logger:    logger,
				Runner:    e.opts.Runner,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context(), shutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PORT and CLIPPER_ADDR)")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "serve a built front-end from this directory")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for in-flight clips on shutdown")
	return cmd
}
