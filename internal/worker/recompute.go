// Package worker reacts to expense events by recomputing the affected
// group's settlement plan. It monitors ledger integrity: each group's open
// transfers and unsettled members are exported as gauges and residuals are
// logged.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/logging"
)

// Settler computes a group's settlement.
type Settler interface {
	GroupSettlement(ctx context.Context, groupID string) (*settlement.Result, error)
}

// RecomputeWorker recomputes settlements when a group's expenses change.
type RecomputeWorker struct {
	settlements Settler
}

func NewRecomputeWorker(settlements Settler) *RecomputeWorker {
	return &RecomputeWorker{settlements: settlements}
}

// HandleExpenseEvent recomputes the plan of the event's group and updates its
// gauges. Events for groups that no longer exist drop the group's gauges.
func (w *RecomputeWorker) HandleExpenseEvent(ctx context.Context, event *events.ExpenseEvent) error {
	logger := logging.FromContext(ctx).With(
		"type", event.Type,
		"group_id", event.GroupID,
		"expense_id", event.ExpenseID,
	)
	logger.Info("Processing expense event")

	result, err := w.settlements.GroupSettlement(logging.WithLogger(ctx, logger), event.GroupID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info("Group no longer exists, skipping recompute")
		metrics.GroupResidualMembers.DeleteLabelValues(event.GroupID)
		metrics.GroupOpenTransfers.DeleteLabelValues(event.GroupID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("recompute group %s: %w", event.GroupID, err)
	}

	metrics.GroupResidualMembers.WithLabelValues(event.GroupID).Set(float64(len(result.Residuals)))
	metrics.GroupOpenTransfers.WithLabelValues(event.GroupID).Set(float64(len(result.Settlements)))

	if len(result.Residuals) > 0 {
		logger.Warn("Group ledger does not balance",
			"residual_members", len(result.Residuals),
			"group_total", result.GroupTotal.String(),
		)
		return nil
	}

	logger.Info("Settlement recomputed",
		"transfers", len(result.Settlements),
		"group_total", result.GroupTotal.String(),
		"currency", result.Currency,
	)
	return nil
}

// Handler adapts the worker to an events consumer.
func (w *RecomputeWorker) Handler() events.Handler {
	return w.HandleExpenseEvent
}
