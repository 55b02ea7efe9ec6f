package main

import (
	"errors"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/pipeline"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/storage"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Re-merge intermediate artifacts left by an earlier run",
	RunE:  remerge,
}

func init() {
	mergeCmd.Flags().StringP("output", "o", "", "output directory or bucket URI holding intermediate/")
	mergeCmd.Flags().Bool("keep-intermediate", true, "keep the artifacts after merging")
	mergeCmd.Flags().String("upload", "", "also copy the wide table to this URI")
}

func remerge(cmd *cobra.Command, _ []string) error {
	stringFlag(cmd, "output", &cfg.Output.Location)
	stringFlag(cmd, "upload", &cfg.Output.Upload)
	keep, _ := cmd.Flags().GetBool("keep-intermediate")
	if cfg.Output.Location == "" {
		return errors.New("--output is required")
	}

	ctx := cmd.Context()
	store, err := storage.NewArtifactStore(ctx, storage.Config{Root: cfg.Output.Location, Bucket: bucketConfig()})
	if err != nil {
		return err
	}
	defer store.Close()

	runner, err := pipeline.NewRunner(pipeline.Options{
		Logger:       slog.Default(),
		Store:        store,
		Workers:      cfg.Pipeline.Workers,
		WriterConfig: tables.WriterConfig{CompressionLevel: cfg.Output.Compression},
		RunID:        uuid.NewString(),
	})
	if err != nil {
		return err
	}

	table, err := runner.Remerge(ctx, pipeline.PublishOptions{KeepIntermediate: keep})
	if err != nil {
		return err
	}
	if cfg.Output.Upload != "" {
		if err := storage.Upload(ctx, cfg.Output.Upload, table.Data, bucketConfig()); err != nil {
			slog.Error("upload failed", "destination", cfg.Output.Upload, "error", err)
		}
	}
	cmd.Printf("%s: %s rows from %d artifacts (%s)\n",
		table.URI, humanize.Comma(int64(table.Rows)), table.Merge.Artifacts, humanize.IBytes(uint64(table.ByteSize)))
	return nil
}
