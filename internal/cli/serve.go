package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve the Connect API (HTTP/1.1 and h2c), the REST read resources under
/api, /health and Prometheus metrics. Expense changes are published to AMQP
when AMQP_URL is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQP.Enabled() {
		client, err := events.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		defer client.Close()
		publisher = client
		slog.Info("Publishing expense events", "exchange", cfg.AMQP.Exchange)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(cfg, store, publisher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", server.Addr, "auth_enabled", cfg.Auth.Enabled(), "auth_required", cfg.Auth.Required)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHandler wires services, interceptors and routes into one h2c handler.
func newHandler(c *config.Config, store *sqlite.SQLiteStore, publisher events.Publisher) http.Handler {
	srv := api.NewServer(settlement.NewService(store, store), store, store)
	srv.SetAllowedOrigin(c.Server.AllowedOrigin)
	if c.Metrics.Enabled {
		srv.EnableMetrics(c.Metrics.Path)
	}

	var interceptors []connect.Interceptor
	if c.Auth.Enabled() {
		jwtManager := auth.NewJWTManager(c.Auth.JWTSecret, c.Auth.TokenDuration)
		authenticator := auth.NewPasswordAuthenticator(store).WithCost(c.Auth.BcryptCost)

		// Login and register never need a token
		srv.Mount(rpc.NewAuthServiceHandler(
			service.NewAuthService(authenticator, jwtManager),
			connect.WithInterceptors(middleware.LoggingInterceptor()),
		))

		interceptors = append(interceptors, middleware.Auth(jwtManager, c.Auth.Required))
		if c.Auth.Required {
			srv.RequireAuth(jwtManager)
		}
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor())
	opts := connect.WithInterceptors(interceptors...)

	srv.Mount(rpc.NewGroupServiceHandler(service.NewGroupService(store), opts))
	srv.Mount(rpc.NewExpenseServiceHandler(service.NewExpenseService(store, publisher), opts))
	srv.Mount(rpc.NewSettlementServiceHandler(service.NewSettlementService(settlement.NewService(store, store)), opts))

	// h2c serves HTTP/2 without TLS for Connect and gRPC clients
	return h2c.NewHandler(srv.Handler(), &http2.Server{})
}
