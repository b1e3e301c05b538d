package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpadapter "github.com/phishguard/phish-detector/internal/adapters/http"
	"github.com/phishguard/phish-detector/internal/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification and rules API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(false, func(server *httpadapter.Server, cfg *config.Config, logger *zap.Logger) error {
				if listen != "" {
					cfg.Set("server.listen_address", listen)
				}
				return serve(cmd.Context(), server, cfg, logger)
			})
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides server.listen_address)")
	return cmd
}

// serve runs until SIGINT/SIGTERM, then drains in-flight requests
func serve(ctx context.Context, server *httpadapter.Server, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	readTimeout, err := cfg.GetDuration("server.read_timeout")
	if err != nil {
		return err
	}
	writeTimeout, err := cfg.GetDuration("server.write_timeout")
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.GetDuration("server.shutdown_timeout")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:         cfg.GetString("server.listen_address"),
		Handler:      server.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("address", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
