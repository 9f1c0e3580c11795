package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/transport-saas-ms/console/internal/mockapi"
	"github.com/transport-saas-ms/console/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		secret   string
		tokenTTL time.Duration
		level    string
	)

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run a local stand-in for the transport API authentication endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := logger.New(logger.Config{Level: level, Environment: "development", Output: os.Stderr})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer l.Sync()

			server := &http.Server{
				Addr: addr,
				Handler: mockapi.NewRouter(mockapi.Options{
					Secret:   []byte(secret),
					TokenTTL: tokenTTL,
					Logger:   l,
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			for _, u := range mockapi.DefaultSeed() {
				l.Info("Seeded account",
					logger.Component("mockapi"),
					logger.String("email", u.Email),
					logger.Role(u.Role),
				)
			}
			return serve(cmd.Context(), server, l)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("MOCK_API_ADDR", "127.0.0.1:3001"), "listen address")
	cmd.Flags().StringVar(&secret, "secret", envOr("MOCK_API_SECRET", "dev-secret"), "HS256 signing secret")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", time.Hour, "access token lifetime")
	cmd.Flags().StringVar(&level, "log-level", envOr("LOG_LEVEL", "info"), "log level")
	return cmd
}

func serve(ctx context.Context, server *http.Server, l logger.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		l.Info("Mock API listening",
			logger.Component("server"),
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		l.Info("Shutting down mock API...", logger.Component("server"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
