// Command sosrelay runs the SOS dispatch service.
//
// Usage:
//
//	sosrelay serve
//	sosrelay migrate
//	APP_ENV=production DB_DRIVER=pg DSN=... sosrelay serve
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SOSRelay/pkg/config"
	"SOSRelay/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	root := &cobra.Command{
		Use:   "sosrelay",
		Short: "SOS emergency dispatch and notification fan-out service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			return logger.Init(config.GlobalConfig.Log, config.GlobalConfig.Mode)
		},
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and live channel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GlobalConfig
			if addr != "" {
				cfg.Addr = addr
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           app.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting sosrelay",
					zap.String("addr", cfg.Addr),
					zap.String("store", cfg.DBDriver),
					zap.String("audiencePolicy", cfg.AudiencePolicy),
					zap.Bool("sms", cfg.Twilio.Configured()),
					zap.Bool("push", cfg.FCM.Configured()))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ADDR")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()
			cfg := config.GlobalConfig
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			logger.Info("schema up to date", zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
}
