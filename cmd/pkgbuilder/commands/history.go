package commands

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/build"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Package string `arg:"" optional:"" help:"Only list builds of this package"`
	Limit   int    `short:"n" help:"Maximum number of builds to list" default:"20"`
	ID      string `name:"id" help:"Show the stages of one build"`
}

func (h *HistoryCmd) Run(g *Global) error {
	if g.Config.History.Path == "" {
		return foundationerrors.ConfigError("build history is disabled; set history.path").
			WithContext("key", "history.path").
			Build()
	}
	store, err := history.NewSQLiteStore(g.rootPath(g.Config.History.Path))
	if err != nil {
		return foundationerrors.IOError("failed to open build history").WithCause(err).Build()
	}
	defer func() {
		_ = store.Close()
	}()

	if h.ID != "" {
		rec, err := store.GetByBuildID(g.Ctx, h.ID)
		if err != nil {
			if history.IsNotFound(err) {
				return foundationerrors.ValidationError(fmt.Sprintf("no build with id %q", h.ID)).Build()
			}
			return foundationerrors.IOError("failed to read build history").WithCause(err).Build()
		}
		return writeRecord(g.Stdout, rec)
	}

	records, err := store.Recent(g.Ctx, h.Package, h.Limit)
	if err != nil {
		return foundationerrors.IOError("failed to read build history").WithCause(err).Build()
	}
	return writeRecords(g.Stdout, records)
}

func writeRecords(w io.Writer, records []history.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tPACKAGE\tVERSION\tSTATUS\tDURATION\tRESULT")
	for _, rec := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.UTC().Format(time.RFC3339),
			rec.Package,
			versionOf(rec),
			rec.Status,
			rec.Duration.Round(time.Millisecond),
			resultOf(rec),
		)
	}
	return tw.Flush()
}

func writeRecord(w io.Writer, rec history.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Build:\t%s\n", rec.BuildID)
	_, _ = fmt.Fprintf(tw, "Package:\t%s %s\n", rec.Package, versionOf(rec))
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", rec.Status)
	_, _ = fmt.Fprintf(tw, "Started:\t%s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(tw, "Duration:\t%s\n", rec.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(tw, "Result:\t%s\n", resultOf(rec))
	for _, stage := range stageOrder(rec.Stages) {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", stage, rec.Stages[stage].Round(time.Microsecond))
	}
	return tw.Flush()
}

func versionOf(rec history.Record) string {
	if rec.Version == "" {
		return "-"
	}
	if rec.Release == "" {
		return rec.Version
	}
	return rec.Version + "-" + rec.Release
}

func resultOf(rec history.Record) string {
	if rec.Status == history.StatusDone {
		return rec.Archive
	}
	if rec.FailedStage != "" {
		return rec.FailedStage + ": " + rec.Error
	}
	return rec.Error
}

// stageOrder returns the recorded stage names in execution order; unknown names follow,
// sorted.
func stageOrder(stages map[string]time.Duration) []string {
	names := make([]string, 0, len(stages))
	for _, stage := range build.StageOrder {
		if _, ok := stages[string(stage)]; ok {
			names = append(names, string(stage))
		}
	}
	var rest []string
	for name := range stages {
		if !slices.Contains(names, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}
