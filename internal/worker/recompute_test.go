package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage"
)

type fakeSettler struct {
	result *settlement.Result
	err    error
	calls  []string
}

func (f *fakeSettler) GroupSettlement(_ context.Context, groupID string) (*settlement.Result, error) {
	f.calls = append(f.calls, groupID)
	return f.result, f.err
}

func TestHandleExpenseEvent(t *testing.T) {
	event := events.NewExpenseEvent(events.ExpenseCreated, "group-1", "expense-1", "")

	tests := []struct {
		name    string
		settler *fakeSettler
		wantErr bool
	}{
		{
			name: "recomputes the group",
			settler: &fakeSettler{result: &settlement.Result{
				GroupID:     "group-1",
				GroupTotal:  decimal.NewFromInt(90),
				Settlements: []calculator.Settlement{{FromMemberID: "b", ToMemberID: "a", Amount: decimal.NewFromInt(30)}},
			}},
		},
		{
			name: "residuals are reported, not retried",
			settler: &fakeSettler{result: &settlement.Result{
				GroupID:   "group-1",
				Residuals: []calculator.Balance{{MemberID: "a", NetAmount: decimal.NewFromInt(40)}},
			}},
		},
		{
			name:    "deleted group is dropped",
			settler: &fakeSettler{err: fmt.Errorf("%w: group group-1", storage.ErrNotFound)},
		},
		{
			name:    "storage failure is retried",
			settler: &fakeSettler{err: errors.New("database is locked")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRecomputeWorker(tt.settler).Handler()(context.Background(), event)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "group-1")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []string{"group-1"}, tt.settler.calls)
		})
	}
}

func TestHandleExpenseEvent_GroupGauges(t *testing.T) {
	const groupID = "group-gauges"
	event := events.NewExpenseEvent(events.ExpenseUpdated, groupID, "expense-1", "")

	settler := &fakeSettler{result: &settlement.Result{
		GroupID: groupID,
		Settlements: []calculator.Settlement{
			{FromMemberID: "b", ToMemberID: "a", Amount: decimal.NewFromInt(15)},
			{FromMemberID: "c", ToMemberID: "a", Amount: decimal.NewFromInt(45)},
		},
		Residuals: []calculator.Balance{{MemberID: "a", NetAmount: decimal.NewFromInt(40)}},
	}}
	w := NewRecomputeWorker(settler)

	require.NoError(t, w.HandleExpenseEvent(context.Background(), event))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.GroupOpenTransfers.WithLabelValues(groupID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GroupResidualMembers.WithLabelValues(groupID)))

	// Group deleted afterwards: its series go away
	settler.result = nil
	settler.err = fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	require.NoError(t, w.HandleExpenseEvent(context.Background(), event))
	assert.False(t, metrics.GroupOpenTransfers.DeleteLabelValues(groupID))
	assert.False(t, metrics.GroupResidualMembers.DeleteLabelValues(groupID))
}
