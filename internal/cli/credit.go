package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rejectly/rejectly/internal/domain"
)

func init() {
	creditGrantCmd.Flags().StringVar(&grantReason, "reason", "operator grant", "Ledger description")
	creditCmd.AddCommand(creditGrantCmd)
	creditCmd.AddCommand(creditBalanceCmd)
	rootCmd.AddCommand(creditCmd)
}

var grantReason string

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Inspect and grant boost currency",
}

var creditGrantCmd = &cobra.Command{
	Use:   "grant USER AMOUNT",
	Short: "Grant currency to a user from the system pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[1])
		}

		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Credit.Grant(cmd.Context(), args[0], amount, domain.TxGrant, "", grantReason); err != nil {
			return err
		}
		bal, err := d.Credit.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("granted %d to %s, balance %d\n", amount, args[0], bal)
		return nil
	},
}

var creditBalanceCmd = &cobra.Command{
	Use:   "balance USER",
	Short: "Show a user's balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		bal, err := d.Credit.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", args[0], bal)

		entries, err := d.Credit.History(cmd.Context(), args[0], 10)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "TIME\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				e.Timestamp.Format("2006-01-02 15:04"), e.Type, e.Amount, e.Balance, e.Description)
		}
		return w.Flush()
	},
}
