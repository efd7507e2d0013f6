package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"whspr/internal/config"
	"whspr/internal/history"
	"whspr/internal/logging"
)

// PrintHistory writes the n most recent transcripts as a table.
func PrintHistory(ctx context.Context, cfg config.Config, n int, w io.Writer) error {
	if cfg.HistoryPath == "" {
		return errors.New("history is disabled (HISTORY_PATH is empty)")
	}
	store, err := history.Open(ctx, cfg.HistoryPath, cfg.HistoryMax, logging.For("history", false))
	if err != nil {
		return err
	}
	defer store.Close()
	entries, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPROVIDER\tAUDIO\tTEXT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Provider, e.Audio.Round(100*time.Millisecond), e.Text)
	}
	return tw.Flush()
}
