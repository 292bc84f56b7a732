package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"beatset/internal/audio"
	"beatset/internal/dataset"
	"beatset/internal/datastore"
	"beatset/internal/folderproc"
	"beatset/internal/preflight"
	"beatset/internal/songs"
)

const defaultDatasetName = "dataset.db"

type buildTarget struct {
	partition string
	folders   []string
	out       string
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var rootFlag, outFlag string
	var split bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a snippet dataset from song folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			root := strings.TrimSpace(rootFlag)
			if root == "" {
				root = cfg.Paths.DataDir
			}
			out := strings.TrimSpace(outFlag)
			if out == "" {
				out = filepath.Join(cfg.Paths.OutputDir, defaultDatasetName)
			}

			checkCfg := *cfg
			checkCfg.Paths.DataDir = root
			if err := preflight.Failed(preflight.RunAll(cmd.Context(), &checkCfg)); err != nil {
				return err
			}

			folders, err := songs.Discover(root)
			if err != nil {
				return err
			}
			if len(folders) == 0 {
				return fmt.Errorf("no song folders found under %s", root)
			}

			prog := progressFor(cmd, logger)
			cache, closeCache, err := ctx.openCache(prog)
			if err != nil {
				return err
			}
			defer closeCache()

			builder, err := dataset.NewBuilder(dataset.Options{
				Config:    cfg,
				Cache:     cache,
				Processor: folderproc.New(cache, audio.ParamsFromConfig(cfg), logger),
				Logger:    logger,
				Progress:  prog,
			})
			if err != nil {
				return err
			}

			targets := []buildTarget{{folders: folders, out: out}}
			if split {
				targets = splitTargets(folders, out, cfg.Split.Train, cfg.Split.Validation)
			}

			rows := make([][]string, 0, len(targets))
			for _, target := range targets {
				if len(target.folders) == 0 {
					rows = append(rows, []string{partitionLabel(target.partition), "0", "-", "-", "-", "-", "skipped (no folders)"})
					continue
				}
				ds, report, err := builder.Build(cmd.Context(), target.folders)
				if err != nil {
					return fmt.Errorf("build %s: %w", partitionLabel(target.partition), err)
				}
				if err := writeDataset(cmd, target, ds, report); err != nil {
					return err
				}
				rows = append(rows, []string{
					partitionLabel(target.partition),
					strconv.Itoa(report.Attempted),
					strconv.Itoa(report.Succeeded),
					strconv.Itoa(len(report.Failed)),
					strconv.Itoa(report.Rows),
					strconv.Itoa(report.Snippets),
					target.out,
				})
			}

			headers := []string{"Partition", "Folders", "Succeeded", "Failed", "Rows", "Snippets", "Output"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Songs root directory (defaults to paths.data_dir)")
	cmd.Flags().StringVar(&outFlag, "out", "", "Output dataset file (defaults to <paths.output_dir>/dataset.db)")
	cmd.Flags().BoolVar(&split, "split", false, "Write separate train, validation and test datasets")
	return cmd
}

func writeDataset(cmd *cobra.Command, target buildTarget, ds *dataset.Dataset, report dataset.Report) error {
	store, err := datastore.Open(cmd.Context(), target.out)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.WriteDataset(cmd.Context(), ds, report, target.partition); err != nil {
		return fmt.Errorf("write %s: %w", target.out, err)
	}
	return nil
}

// splitTargets derives one output per partition from out: dataset.db becomes
// dataset-train.db, dataset-validation.db and dataset-test.db.
func splitTargets(folders []string, out string, train, validation float64) []buildTarget {
	parts := songs.Split(folders, train, validation)
	ext := filepath.Ext(out)
	stem := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".db"
	}
	targets := make([]buildTarget, 0, len(songs.Partitions))
	for _, p := range songs.Partitions {
		targets = append(targets, buildTarget{
			partition: string(p),
			folders:   parts[p],
			out:       fmt.Sprintf("%s-%s%s", stem, p, ext),
		})
	}
	return targets
}

func partitionLabel(p string) string {
	if p == "" {
		return "all"
	}
	return p
}
