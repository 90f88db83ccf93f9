package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/paperqa/server"
)

func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	p, closeFn, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.NewServer(p, a.logger, server.Config{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	color.Cyan("Listening on %s", a.cfg.Server.Addr)
	a.logger.Info("server started", "addr", a.cfg.Server.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
