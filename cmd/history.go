package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"basemusic/core/catalog"
	"basemusic/core/history"
	"basemusic/model"
	"basemusic/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent plays from the snapshot store",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closeStorage, err := storage.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStorage()

		rec := history.NewRecorder(cmd.Context(), storage.NewSnapshot[[]model.PlayHistoryItem](backend, storage.KeyHistory), nil)
		items := rec.Recent(historyLimit)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Title", "Artist", "Listened", "Length", "Progress", "Wallet", "Last played"})
		for _, it := range items {
			t.AppendRow(table.Row{
				it.TrackTitle,
				it.TrackArtist,
				catalog.FormatDuration(it.PlayDuration),
				catalog.FormatDuration(it.TotalDuration),
				fmt.Sprintf("%.0f%%", rec.Progress(it.TrackID)),
				it.WalletAddress,
				time.UnixMilli(it.PlayDate).Format(time.DateTime),
			})
		}
		t.Render()
		return nil
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Print the points leaderboard from the snapshot store",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closeStorage, err := storage.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStorage()

		// Read the snapshot directly: opening a Ledger would reset it.
		entries, err := loadPoints(cmd.Context(), backend)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Wallet", "Points", "Minutes"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.WalletAddress, e.TotalPoints, fmt.Sprintf("%.1f", e.PlayTimeMinutes)})
		}
		t.AppendFooter(table.Row{"Total", lo.SumBy(entries, func(e model.PointsEntry) int { return e.TotalPoints }), ""})
		t.Render()
		return nil
	},
}

func loadPoints(ctx context.Context, backend storage.Backend) ([]model.PointsEntry, error) {
	entries, err := storage.NewSnapshot[[]model.PointsEntry](backend, storage.KeyPoints).Load(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b model.PointsEntry) int { return b.TotalPoints - a.TotalPoints })
	return entries, nil
}

func findTrack(tracks []model.Track, id string) (model.Track, bool) {
	return lo.Find(tracks, func(t model.Track) bool { return t.ID == id })
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultRecent, "number of plays to show")
	rootCmd.AddCommand(historyCmd, pointsCmd)
}
