package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketwire/internal/config"
	"marketwire/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the marketwire HTTP server.

The server exposes:
  • POST /url-article            process a single article URL
  • POST /url-articles/batch     submit a batch for async processing
  • GET  /url-articles/batch/:id poll a batch task
  • GET  /performance            pipeline performance metrics
  • CRUD under /articles and request logs under /logs

Examples:
  # Start server on the configured port (default 8080)
  marketwire serve

  # Start on a custom port
  marketwire serve --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		return runServe(cmd.Context(), port, host)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default from config: 8080)")
	serveCmd.Flags().String("host", "", "HTTP server host (default from config: 0.0.0.0)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, port int, host string) error {
	cfg := config.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.controller, a.batches, a.metrics, a.store, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		a.log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		a.log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		a.log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.Duration(serverCfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		a.log.Info("Server stopped successfully")
	}

	return nil
}
