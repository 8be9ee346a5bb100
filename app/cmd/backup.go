package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the sqlite store to the backup directory",
	Long: `backup checkpoints the write-ahead log and copies the sqlite store to
<backup_dir>/<name>_backup_YYYYMMDD_HHMMSS.db. When s3 is enabled the copy is
also uploaded.`,
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
		res, err := maint.Backup(cmd.Context())
		if res.Path != "" {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", labelStyle.Render("backup:"), valueStyle.Render(res.Path), humanBytes(res.Bytes))
			if res.Remote != "" {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render("uploaded:"), valueStyle.Render(res.Remote))
			}
		}
		return err
	},
}
