package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/cmd/billiardsd/cmd/cmdutil"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent persisted auth events (warn and error)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := bunx.NewDB(ctx, cfg.DatabaseURL, cmdutil.PoolOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		events, err := repository.NewBunAuthEventRepository(db).ListRecent(ctx, eventsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLEVEL\tTYPE\tSTATUS\tPATH\tREQUEST_ID\tMESSAGE")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				ev.CreatedAt.Format("2006-01-02 15:04:05"),
				ev.Level,
				ev.Type,
				ev.StatusCode,
				ev.Path,
				ev.RequestID,
				ev.Message,
			)
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Number of events to show")
	rootCmd.AddCommand(eventsCmd)
}
