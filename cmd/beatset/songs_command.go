package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"beatset/internal/beatmap"
	"beatset/internal/songs"
)

type songListing struct {
	Folder       string   `json:"folder"`
	Title        string   `json:"title,omitempty"`
	BPM          float64  `json:"bpm,omitempty"`
	Difficulties []string `json:"difficulties,omitempty"`
	Audio        string   `json:"audio,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func newSongsCommand(ctx *commandContext) *cobra.Command {
	songsCmd := &cobra.Command{
		Use:   "songs",
		Short: "Inspect the songs root",
	}
	songsCmd.AddCommand(newSongsListCommand(ctx))
	return songsCmd
}

func newSongsListCommand(ctx *commandContext) *cobra.Command {
	var rootFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered song folders in build order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := strings.TrimSpace(rootFlag)
			if root == "" {
				root = cfg.Paths.DataDir
			}
			folders, err := songs.Discover(root)
			if err != nil {
				return err
			}

			listings := make([]songListing, 0, len(folders))
			for _, folder := range folders {
				listings = append(listings, describeFolder(folder))
			}
			if asJSON {
				return writeJSON(cmd, listings)
			}
			if len(listings) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No song folders under %s\n", root)
				return nil
			}

			rows := make([][]string, 0, len(listings))
			for _, l := range listings {
				folder := l.Folder
				if rel, err := filepath.Rel(root, folder); err == nil {
					folder = rel
				}
				if l.Error != "" {
					rows = append(rows, []string{folder, "", "", "", "error: " + l.Error})
					continue
				}
				rows = append(rows, []string{
					folder,
					l.Title,
					strconv.FormatFloat(l.BPM, 'f', -1, 64),
					strings.Join(l.Difficulties, ", "),
					l.Audio,
				})
			}
			headers := []string{"Folder", "Title", "BPM", "Difficulties", "Audio"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Songs root directory (defaults to paths.data_dir)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func describeFolder(folder string) songListing {
	listing := songListing{Folder: folder}
	info, err := beatmap.ReadInfo(folder)
	if err != nil {
		listing.Error = err.Error()
		return listing
	}
	listing.Title = info.SongName
	listing.BPM = info.BeatsPerMinute
	for _, chart := range info.Charts() {
		listing.Difficulties = append(listing.Difficulties, chart.Difficulty)
	}
	if audio, err := beatmap.AudioSource(folder, info); err == nil {
		listing.Audio = filepath.Base(audio)
	} else {
		listing.Audio = "missing"
	}
	return listing
}
