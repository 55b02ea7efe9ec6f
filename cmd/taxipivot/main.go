package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/pipeline"
)

// Set at build time with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

func init() {
	time.Local = time.UTC // dates and hours are bucketed in UTC

	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set memory limit: %v\n", err)
	}
}

func main() {
	pipeline.Producer.Version = version
	pipeline.Producer.GitSHA = gitSHA

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
