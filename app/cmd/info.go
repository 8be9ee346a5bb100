package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/wahook/pkg/domains/events"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show store totals, date range and size",
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

		info, err := st.events.Info(cmd.Context())
		if err != nil {
			return err
		}
		printInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func printInfo(out io.Writer, info events.StoreInfo) {
	row := func(label string, value any) {
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), valueStyle.Render(fmt.Sprint(value)))
	}

	fmt.Fprintln(out, titleStyle.Render("Event store"))
	row("driver", info.Driver)
	if info.Path != "" {
		row("path", info.Path)
	}
	row("size", humanBytes(info.SizeBytes))
	row("events", info.TotalEvents)
	row("sent", info.Sent)
	row("received", info.Received)
	row("group", info.Group)
	row("private", info.Private)
	if info.FirstEventAt != nil {
		row("first event", info.FirstEventAt.Local().Format(time.DateTime))
	}
	if info.LastEventAt != nil {
		row("last event", info.LastEventAt.Local().Format(time.DateTime))
	}

	if len(info.ByContentType) == 0 {
		return
	}
	types := make([]string, 0, len(info.ByContentType))
	for t := range info.ByContentType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintln(out, titleStyle.Render("By content type"))
	for _, t := range types {
		row(t, info.ByContentType[t])
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
