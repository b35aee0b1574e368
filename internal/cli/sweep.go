package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "Print the sweep summary as JSON")
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(jobsCmd)
}

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep JOB",
	Short: "Run one scheduled job immediately",
	Long: `Run a scheduled job once, outside its window, and print its summary.
Jobs: daily_generation, milestone_motivation, time_warnings, reminders.`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	sum, err := d.Runner.RunNow(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if sweepJSON {
		return printJSON(os.Stdout, sum)
	}

	fmt.Printf("%s: %d processed, %d ok, %d skipped, %d failed (%s)\n",
		sum.Job, sum.Processed, sum.Succeeded, sum.Skipped, sum.Failed,
		sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	for _, f := range sum.Failures {
		fmt.Printf("  %s: %s\n", f.ID, f.Reason)
	}
	if sum.Error != "" {
		return fmt.Errorf("%s: %s", sum.Job, sum.Error)
	}
	return nil
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		w := newTable()
		fmt.Fprintln(w, "NAME\tINTERVAL\tWINDOW")
		for _, s := range d.Runner.Statuses() {
			window := s.Window
			if window == "" {
				window = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Interval, window)
		}
		return w.Flush()
	},
}
