package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wahook/pkg/domains/maintenance"
)

var (
	purgeDays int
	purgeYes  bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete events older than a number of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeDays <= 0 {
			return errors.New("--days must be greater than zero")
		}
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		st, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		maint, err := newMaintenance(cmd.Context(), cfg, st, log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		confirm := maintenance.AutoConfirm
		if !purgeYes {
			confirm = promptConfirm(cmd.InOrStdin(), out)
		}

		cutoff := time.Now().AddDate(0, 0, -purgeDays)
		removed, err := maint.Purge(cmd.Context(), cutoff, confirm)
		if errors.Is(err, maintenance.ErrPurgeNotConfirmed) {
			fmt.Fprintln(out, warnStyle.Render("purge cancelled"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("removed:"), valueStyle.Render(fmt.Sprintf("%d events", removed)))
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "delete events received more than this many days ago")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "skip the confirmation prompt")
	_ = purgeCmd.MarkFlagRequired("days")
}

// promptConfirm asks on out and accepts y or yes from in.
func promptConfirm(in io.Reader, out io.Writer) maintenance.Confirmer {
	return maintenance.ConfirmFunc(func(count int64, cutoff time.Time) (bool, error) {
		fmt.Fprintf(out, "%s ", warnStyle.Render(fmt.Sprintf("Delete %d events received before %s? [y/N]", count, cutoff.Format(time.DateTime))))
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}
