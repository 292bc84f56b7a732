package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"beatset/internal/beatmap"
)

func newEncodeCommand() *cobra.Command {
	var bpm float64
	var outDir string
	var eventsFrom string

	cmd := &cobra.Command{
		Use:         "encode <predictions.json>",
		Short:       "Write a playable chart from lane predictions",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if bpm <= 0 {
				return errors.New("--bpm must be greater than 0")
			}
			if strings.TrimSpace(outDir) == "" {
				return errors.New("--out is required")
			}
			predictions, err := beatmap.ReadPredictions(args[0])
			if err != nil {
				return err
			}

			var events []beatmap.Event
			if path := strings.TrimSpace(eventsFrom); path != "" {
				source, err := beatmap.ReadBeatmap(path)
				if err != nil {
					return fmt.Errorf("read events: %w", err)
				}
				events = source.Events
			}

			bm, info, err := beatmap.Encode(predictions, bpm, events)
			if err != nil {
				return err
			}
			if err := beatmap.WriteChart(outDir, bm, info); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d notes to %s\n",
				len(bm.Notes), filepath.Join(outDir, beatmap.ChartFilename))
			return nil
		},
	}

	cmd.Flags().Float64Var(&bpm, "bpm", 0, "Song tempo in beats per minute")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for info.dat and Expert.dat")
	cmd.Flags().StringVar(&eventsFrom, "events-from", "", "Copy lighting events from an existing difficulty file")
	return cmd
}
