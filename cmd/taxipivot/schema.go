package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/aggregate"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/pipeline"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Print a file's columns, resolved roles and sample values",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectSchema,
}

func init() {
	schemaCmd.Flags().Int("rows", 5, "sample rows to print")
}

func inspectSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	uri := args[0]
	sample, _ := cmd.Flags().GetInt("rows")

	router, err := loadRouter()
	if err != nil {
		return err
	}
	ref := source.ParseFileRef(uri, router)
	check := pipeline.Preflight(ctx, bucketConfig(), []source.FileRef{ref}, 1)[0]
	if !check.Opened {
		return check.Err
	}

	desc := check.Schema
	period := "unknown"
	if ref.Period != nil {
		period = ref.Period.String()
	}
	cmd.Printf("%s\n%s, period %s\n%s rows, %d columns\n\n",
		uri, ref.Category, period, humanize.Comma(check.Rows), len(desc.Columns))
	for _, c := range desc.Columns {
		cmd.Printf("  %-28s %s\n", c.Name, c.Kind)
	}

	roles := check.Roles
	cmd.Println()
	if check.Err != nil {
		cmd.Printf("roles: %v\n", check.Err)
		return nil
	}
	cmd.Printf("event time: %s\n", roles.EventTime)
	if roles.Place != "" {
		cmd.Printf("place:      %s\n", roles.Place)
	} else {
		cmd.Printf("place:      %s, %s (rounded)\n", roles.Lat, roles.Lon)
	}

	if sample <= 0 {
		return nil
	}
	opener := source.NewOpener(bucketConfig())
	defer opener.Close()
	h, err := source.OpenParquet(ctx, opener, uri)
	if err != nil {
		return err
	}
	defer h.Close()

	batchRows := cfg.Partition.ProbeBatchRows
	if batchRows < sample {
		batchRows = sample
	}
	it := h.Iterate(batchRows)
	defer it.Close()
	b, err := it.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	col, _ := desc.Lookup(roles.EventTime)
	parser := aggregate.NewTimeParser(col)
	rows := aggregate.NewNormalizer(roles).Normalize(b, nil)
	cmd.Println("\nsample:")
	for i, r := range rows {
		if i >= sample {
			break
		}
		ts := "unparseable"
		if t, ok := parser.Parse(r.Event); ok {
			ts = t.Format("2006-01-02 15:04:05")
		}
		cmd.Printf("  %-20s %-20s place=%s\n", fmt.Sprint(r.Event), ts, r.Place)
	}
	return nil
}
