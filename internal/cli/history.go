package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/history"
	"github.com/hellej/hope-graph-updater/internal/model"
)

type historyFlags struct {
	limit int
}

// NewHistoryCommand creates the "history" cobra command.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent AQI fetches and updates",
		Long: `Show the most recent entries of the updater's history database.

Examples:
  graph-updater history
  graph-updater history --limit 50 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	return cmd
}

func runHistory(ctx context.Context, flags *historyFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Updater.HistoryDB
	if _, err := os.Stat(path); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("no history database at %s", path), err)
	}

	store, err := history.Open(path)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to open history", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, flags.limit)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to read history", err)
	}

	if IsJSONOutput() {
		if entries == nil {
			entries = []history.Entry{}
		}
		printJSON(map[string]interface{}{"entries": entries})
		return nil
	}
	printHistoryText(entries)
	return nil
}

// printHistoryText prints entries as a table, newest first:
//
//	TIME                 KIND    STATUS  ARTIFACT               DURATION  VALID
//	2024-03-01 12:00:41  update  ok      aqi_2024-03-01T12.csv  1.2s      98.40%
func printHistoryText(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Println("No history entries found.")
		return
	}
	fmt.Printf("%-20s %-7s %-7s %-24s %-9s %s\n", "TIME", "KIND", "STATUS", "ARTIFACT", "DURATION", "VALID")
	for _, e := range entries {
		fmt.Printf("%-20s %-7s %-7s %-24s %-9s %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			e.Status,
			e.Artifact,
			e.Duration.Round(100*time.Millisecond),
			FormatValidRatio(e),
		)
		if e.Status == history.StatusFailed && e.Detail != "" {
			fmt.Printf("  %s\n", e.Detail)
		}
	}
}

// FormatValidRatio renders the valid sample share of an update entry, or
// "-" for other entries.
func FormatValidRatio(e history.Entry) string {
	if e.Kind != history.KindUpdate || e.Status != history.StatusOK {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*e.ValidRatio)
}
