package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	challengeCmd.AddCommand(challengeEnrollCmd)
	challengeShowCmd.Flags().BoolVar(&challengeJSON, "json", false, "Print the challenge as JSON")
	challengeCmd.AddCommand(challengeShowCmd)
	rootCmd.AddCommand(challengeCmd)
}

var challengeJSON bool

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage 100-day challenges",
}

var challengeEnrollCmd = &cobra.Command{
	Use:   "enroll USER CATEGORY",
	Short: "Start a 100-day challenge for a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := d.Challenges.Enroll(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enrolled %s in %s: %s\n", c.UserID, c.Category, c.ID)
		return nil
	},
}

var challengeShowCmd = &cobra.Command{
	Use:   "show CHALLENGE_ID",
	Short: "Show a challenge and its days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		v, err := d.Challenges.View(cmd.Context(), args[0], time.Now())
		if err != nil {
			return err
		}
		if challengeJSON {
			return printJSON(os.Stdout, v)
		}

		fmt.Printf("Challenge %s (%s, user %s)\n", v.ID, v.Category, v.UserID)
		fmt.Printf("  Day %d of 100, %s", v.CurrentDay, v.Difficulty)
		if v.Finished {
			fmt.Print(", finished")
		}
		fmt.Println()

		w := newTable()
		fmt.Fprintln(w, "DAY\tSTATUS\tQUEST\tINSTANCE")
		for _, day := range v.Days {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", day.Day, day.Status, day.QuestID, day.UserQuestID)
		}
		return w.Flush()
	},
}
