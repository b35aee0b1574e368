package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges INSTANCE_ID...",
	Short: "Show earned badges for quest instances",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBadges,
}

func runBadges(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	badges, err := d.Badges.ClassifyBatch(cmd.Context(), args)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "INSTANCE\tBADGES")
	for _, id := range args {
		b := badges[id]
		var names []string
		if b.Silver {
			names = append(names, "silver")
		}
		if b.Gold {
			names = append(names, "gold")
		}
		if b.Bronze {
			names = append(names, "bronze")
		}
		if b.Blue {
			names = append(names, "blue")
		}
		if len(names) == 0 {
			names = []string{"-"}
		}
		fmt.Fprintf(w, "%s\t%s\n", id, strings.Join(names, ","))
	}
	return w.Flush()
}
