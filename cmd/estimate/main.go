// Command estimate loads a JSON graph fixture and prints the predicted page
// load time under a set of simulated network conditions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/pwwpche/lighthouse/internal/config"
	"github.com/pwwpche/lighthouse/internal/ctxlog"
	"github.com/pwwpche/lighthouse/internal/estimator"
	"github.com/pwwpche/lighthouse/internal/fixture"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the command's logic for easier testing: it never calls
// os.Exit itself.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(outW)

	graphPath := fs.String("graph", "", "path to a JSON graph fixture (required)")
	profilesPath := fs.String("profiles", "", "optional path to an HCL file of named network profiles")
	profileName := fs.String("profile", "", "name of the profile to use (requires -profiles)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" {
		fs.Usage()
		return fmt.Errorf("estimate: -graph is required")
	}

	opts := config.DefaultOptions()
	if *profilesPath != "" {
		profiles, err := config.LoadProfiles(*profilesPath)
		if err != nil {
			return fmt.Errorf("estimate: %w", err)
		}
		if *profileName == "" {
			return fmt.Errorf("estimate: -profile is required when -profiles is set")
		}
		selected, ok := profiles[*profileName]
		if !ok {
			return fmt.Errorf("estimate: unknown profile %q", *profileName)
		}
		opts = selected
	}

	g, err := fixture.Load(*graphPath)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	ctx := ctxlog.WithLogger(context.Background(), slog.Default())
	result, err := estimator.Estimate(ctx, g, opts)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	fmt.Fprintf(outW, "predicted page load time: %.1fms\n", result.TotalElapsedTime)
	printTimingTable(outW, result.NodeTimings)
	return nil
}

// printTimingTable writes one line per node, sorted by start time then ID so
// the output is stable across runs of the same graph.
func printTimingTable(outW io.Writer, timings map[string]estimator.NodeTiming) {
	ids := make([]string, 0, len(timings))
	for id := range timings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := timings[ids[i]], timings[ids[j]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		t := timings[id]
		fmt.Fprintf(outW, "  %-24s start=%.1fms end=%.1fms\n", id, t.Start, t.End)
	}
}
