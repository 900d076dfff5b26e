package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/rpc"
)

const tripLedger = `{
  "members": [
    {"id": "a", "name": "Alice"},
    {"id": "b", "name": "Bob"},
    {"id": "c", "name": "Charlie"}
  ],
  "expenses": [
    {"id": "e1", "amount": 90, "payerId": "a", "shares": [
      {"memberId": "a", "amount": 30},
      {"memberId": "b", "amount": 30},
      {"memberId": "c", "amount": "30"}
    ]}
  ]
}`

// fields splits output into whitespace-separated fields per line.
func fields(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			rows = append(rows, f)
		}
	}
	return rows
}

func TestSettleLedger_Table(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, settleLedger(strings.NewReader(tripLedger), &out, &errOut, false))

	rows := fields(out.String())
	assert.Contains(t, rows, []string{"Alice", "60.00"})
	assert.Contains(t, rows, []string{"Bob", "-30.00"})
	assert.Contains(t, rows, []string{"Bob", "Alice", "30.00"})
	assert.Contains(t, rows, []string{"Charlie", "Alice", "30.00"})
	assert.Contains(t, rows, []string{"TOTAL", "90.00"})
	assert.Empty(t, errOut.String())
}

func TestSettleLedger_JSON(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, settleLedger(strings.NewReader(tripLedger), &out, &errOut, true))

	var resp rpc.GetGroupSettlementsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 90.0, resp.GroupTotal)
	assert.Equal(t, []string{"a", "b", "c"}, resp.AllParticipants)
	assert.Equal(t, []rpc.Settlement{
		{FromMemberID: "b", FromName: "Bob", ToMemberID: "a", ToName: "Alice", Amount: 30},
		{FromMemberID: "c", FromName: "Charlie", ToMemberID: "a", ToName: "Alice", Amount: 30},
	}, resp.Settlements)
}

func TestSettleLedger_SplitEqually(t *testing.T) {
	ledger := `{
  "members": [{"id": "a", "name": "Alice"}, {"id": "b", "name": "Bob"}, {"id": "c", "name": "Charlie"}],
  "expenses": [{"id": "e1", "amount": "100", "payerId": "a", "splitEqually": true}]
}`
	var out, errOut bytes.Buffer
	require.NoError(t, settleLedger(strings.NewReader(ledger), &out, &errOut, true))

	var resp rpc.GetGroupSettlementsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	balances := make(map[string]float64)
	for _, b := range resp.Balances {
		balances[b.Name] = b.NetAmount
	}
	assert.Equal(t, map[string]float64{"Alice": 66.66, "Bob": -33.33, "Charlie": -33.33}, balances)
}

func TestSettleLedger_Unbalanced(t *testing.T) {
	// Payer among the shares with shares short of the amount
	ledger := `{
  "members": [{"id": "a", "name": "Alice"}, {"id": "b", "name": "Bob"}],
  "expenses": [{"id": "e1", "amount": 100, "payerId": "a", "shares": [
    {"memberId": "a", "amount": 20}, {"memberId": "b", "amount": 40}
  ]}]
}`
	var out, errOut bytes.Buffer
	require.NoError(t, settleLedger(strings.NewReader(ledger), &out, &errOut, false))

	assert.Contains(t, errOut.String(), "Alice is left at 40.00")
	assert.Contains(t, fields(out.String()), []string{"Bob", "Alice", "40.00"})
}

func TestSettleLedger_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ledger string
	}{
		{"malformed", `{"members": [`},
		{"unknown field", `{"people": []}`},
		{"unknown member", `{"members": [{"id": "a"}], "expenses": [{"id": "e1", "amount": 5, "payerId": "z"}]}`},
		{"negative amount", `{"members": [{"id": "a"}], "expenses": [{"id": "e1", "amount": -5, "payerId": "a"}]}`},
		{"member without id", `{"members": [{"name": "Alice"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Error(t, settleLedger(strings.NewReader(tt.ledger), &out, &errOut, false))
		})
	}
}

func TestSettleCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(tripLedger), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"settle", "--env-file", "", "-f", path, "--json"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	var resp rpc.GetGroupSettlementsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Len(t, resp.Settlements, 2)
}
