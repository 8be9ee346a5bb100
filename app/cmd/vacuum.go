package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the store and report reclaimed space",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		reclaimed, err := maint.Vacuum(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("reclaimed:"), valueStyle.Render(humanBytes(reclaimed)))
		return nil
	},
}
