package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/settlement"
)

func init() {
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().StringP("file", "f", "", "Ledger JSON file, - for stdin")
	settleCmd.Flags().Bool("json", false, "Print the result as JSON")
	_ = settleCmd.MarkFlagRequired("file")
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle a ledger file offline",
	Long: `Read a ledger of members and expenses and print each member's balance,
the transfers that settle the group and the group total. No database needed.

Ledger format:

  {
    "members":  [{"id": "a", "name": "Alice"}, {"id": "b", "name": "Bob"}],
    "expenses": [{"id": "e1", "amount": "90", "payerId": "a",
                  "shares": [{"memberId": "a", "amount": "45"}, {"memberId": "b", "amount": "45"}]},
                 {"id": "e2", "amount": "10", "payerId": "b", "splitEqually": true}]
  }

With splitEqually the amount is divided between the listed shares' members,
or every member when no shares are listed.`,
	Args: cobra.NoArgs,
	RunE: runSettle,
}

type ledgerFile struct {
	Members  []ledgerMember  `json:"members"`
	Expenses []ledgerExpense `json:"expenses"`
}

type ledgerMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ledgerShare struct {
	MemberID string          `json:"memberId"`
	Amount   decimal.Decimal `json:"amount"`
}

type ledgerExpense struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	PayerID      string          `json:"payerId"`
	SplitEqually bool            `json:"splitEqually"`
	Shares       []ledgerShare   `json:"shares"`
}

func runSettle(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	in := cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cannot read ledger: %w", err)
		}
		defer f.Close()
		in = f
	}

	return settleLedger(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), asJSON)
}

func settleLedger(in io.Reader, out, errOut io.Writer, asJSON bool) error {
	var ledger ledgerFile
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ledger); err != nil {
		return fmt.Errorf("invalid ledger: %w", err)
	}

	group, expenses, err := ledger.toModels()
	if err != nil {
		return err
	}

	result, err := settlement.Compute(group, expenses)
	if err != nil {
		return err
	}

	for _, r := range result.Residuals {
		fmt.Fprintf(errOut, "warning: %s is left at %s after settling; the ledger does not balance\n", r.Name, r.NetAmount.StringFixed(2))
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(service.SettlementResponse(result))
	}
	return printSettlement(out, result)
}

func (l *ledgerFile) toModels() (*models.Group, []*models.Expense, error) {
	group := &models.Group{Name: "ledger"}
	for _, m := range l.Members {
		if m.ID == "" {
			return nil, nil, fmt.Errorf("member %q has no id", m.Name)
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		group.Members = append(group.Members, models.Member{ID: m.ID, Name: name})
	}

	expenses := make([]*models.Expense, 0, len(l.Expenses))
	for i, e := range l.Expenses {
		if e.Amount.IsNegative() {
			return nil, nil, fmt.Errorf("expense %d: amount must not be negative", i+1)
		}

		expense := &models.Expense{ID: e.ID, Amount: e.Amount, PayerID: e.PayerID}
		if e.SplitEqually {
			ids := make([]string, 0, len(e.Shares))
			for _, s := range e.Shares {
				ids = append(ids, s.MemberID)
			}
			if len(ids) == 0 {
				for _, m := range group.Members {
					ids = append(ids, m.ID)
				}
			}
			shares, err := calculator.SplitEqually(e.Amount, ids, e.PayerID)
			if err != nil {
				return nil, nil, fmt.Errorf("expense %d: %w", i+1, err)
			}
			for _, s := range shares {
				expense.Participants = append(expense.Participants, models.Participant{MemberID: s.MemberID, Share: s.Amount})
			}
		} else {
			for _, s := range e.Shares {
				if s.Amount.IsNegative() {
					return nil, nil, fmt.Errorf("expense %d: share for %s must not be negative", i+1, s.MemberID)
				}
				expense.Participants = append(expense.Participants, models.Participant{MemberID: s.MemberID, Share: s.Amount})
			}
		}
		expenses = append(expenses, expense)
	}
	return group, expenses, nil
}

func printSettlement(out io.Writer, result *settlement.Result) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "MEMBER\tBALANCE")
	for _, b := range result.Balances {
		fmt.Fprintf(tw, "%s\t%s\n", b.Name, b.NetAmount.StringFixed(2))
	}
	fmt.Fprintln(tw)

	if len(result.Settlements) == 0 {
		fmt.Fprintln(tw, "All settled.")
	} else {
		fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
		for _, s := range result.Settlements {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.FromName, s.ToName, s.Amount.StringFixed(2))
		}
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "TOTAL\t%s\n", result.GroupTotal.StringFixed(2))

	return tw.Flush()
}
