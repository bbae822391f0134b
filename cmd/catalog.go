package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"basemusic/core/catalog"
	"basemusic/server"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Probe the configured audio files and print the discovered tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, _, err := server.NewCatalog(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		res, err := cat.Discover(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"#", "Group", "Title", "Duration", "ID"})
		for i, tr := range res.Tracks {
			group := ""
			for _, p := range res.Playlists {
				if _, ok := findTrack(p.Tracks, tr.ID); ok {
					group = p.Name
					break
				}
			}
			t.AppendRow(table.Row{i + 1, group, tr.Title, catalog.FormatDuration(tr.Duration), tr.ID})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d playlists", len(res.Playlists)), "", ""})
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
