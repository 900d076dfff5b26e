package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/worker"
)

func init() {
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Recompute settlements from expense events",
	Long: `Consume expense events from AMQP and recompute the affected group's
settlement plan, reporting ledgers that no longer balance. Reconnects with
exponential backoff when the broker goes away.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if !cfg.AMQP.Enabled() {
		return errors.New("worker needs AMQP_URL")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	recompute := worker.NewRecomputeWorker(settlement.NewService(store, store))
	dial := func() (*events.Client, error) {
		return events.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange)
	}

	slog.Info("Starting worker", "queue", cfg.AMQP.Queue, "exchange", cfg.AMQP.Exchange)
	err = events.RunConsumer(ctx, dial, cfg.AMQP.Queue, recompute.Handler())
	if errors.Is(err, context.Canceled) {
		slog.Info("Worker stopped")
		return nil
	}
	return err
}
