package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jgivc/tagsync/internal/app"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/spf13/cobra"
)

var (
	runRecheck bool
	runForce   bool
	runFull    bool
	runSince   string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single sync and exit",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}

	cmd.Flags().BoolVar(&runRecheck, "recheck", false, "Revalidate cached files with conditional requests")
	cmd.Flags().BoolVar(&runForce, "force", false, "Download every tag image again")
	cmd.Flags().BoolVar(&runFull, "full", false, "Query all tags, not only those changed since the last sync")
	cmd.Flags().StringVar(&runSince, "since", "", `Query tags changed since this time ("yesterday", "2 days ago" or RFC3339)`)

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := app.New(cfgFileName)
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Stop()

	opts := a.Options()
	if cmd.Flags().Changed("recheck") {
		opts.Recheck = runRecheck
	}
	if cmd.Flags().Changed("force") {
		opts.Force = runForce
	}
	opts.FullScan = runFull

	if runSince != "" {
		since, err := parseSince(runSince, time.Now())
		if err != nil {
			return err
		}
		opts.Since = &since
	}

	result, err := a.RunOnce(ctx, opts)
	if err != nil {
		return err
	}

	return printResult(result)
}

func printResult(result *entity.RunResult) error {
	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(result)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", result.ID)
	fmt.Fprintf(tw, "Took\t%s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(tw, "Tags\t%d (+%d carried)\n", result.Tags, result.Carried)
	for _, o := range []entity.Outcome{
		entity.OutcomeDownloaded,
		entity.OutcomeUpdated,
		entity.OutcomeNotModified,
		entity.OutcomeCacheHit,
		entity.OutcomeSeeded,
		entity.OutcomeSkippedDefault,
		entity.OutcomeCollision,
		entity.OutcomeFailed,
	} {
		if n := result.Outcomes[o]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", o, n)
		}
	}
	fmt.Fprintf(tw, "Orphans\t%d\n", len(result.Orphans))
	fmt.Fprintf(tw, "Missing stash id\t%d\n", len(result.MissingStashID))

	return tw.Flush()
}
