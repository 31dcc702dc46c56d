package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rbisynth/internal/config"
	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/store"
	"github.com/roach88/rbisynth/internal/stubfile"
)

// session is the state shared by the dsl and gems commands once config and
// snapshot are loaded.
type session struct {
	formatter      *OutputFormatter
	logger         *slog.Logger
	cfg            *config.Config
	runtime        *introspect.Snapshot
	snapshotDigest string
	ids            generator.IDSource
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger writes structured records to stderr, at debug level when
// verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSession loads config and the snapshot. snapshotFlag overrides the
// configured snapshot path when set.
func openSession(opts *RootOptions, cmd *cobra.Command, snapshotFlag string) (*session, error) {
	s := &session{
		formatter: newFormatter(opts, cmd),
		logger:    newLogger(opts, cmd),
		ids:       generator.UUIDv7Source{},
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	s.cfg = cfg

	path := snapshotFlag
	if path == "" {
		path = cfg.Snapshot
	}
	if path == "" {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeNoSnapshot,
			"no snapshot given: pass --snapshot or set snapshot in "+config.DefaultFile, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeSnapshot, fmt.Sprintf("reading snapshot: %v", err), nil)
	}
	rt, err := introspect.LoadSnapshot(path)
	if err != nil {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeSnapshot, err.Error(), nil)
	}
	s.runtime = rt
	s.snapshotDigest = ir.SnapshotDigest(data)

	s.formatter.VerboseLog("Loaded %d entities and %d packages from %s",
		len(rt.LoadedEntities()), len(rt.Packages()), path)
	return s, nil
}

// output is what a generation command produced, ready to verify or write.
type output struct {
	command  string
	outdir   string
	files    []stubfile.File
	stubs    []store.StubRecord
	failures []store.FailureRecord

	// keep holds the paths of subjects whose pass failed. Their stubs
	// from an earlier run survive pruning.
	keep []string

	// prune removes stub files nothing generated; set when every
	// candidate was processed.
	prune bool
}

func (o *output) add(path, subject, passID, text string, generators []string) {
	o.files = append(o.files, stubfile.File{Path: path, Content: text})
	o.stubs = append(o.stubs, store.StubRecord{
		Path:       path,
		Subject:    subject,
		PassID:     passID,
		Digest:     ir.Digest(text),
		Generators: generators,
	})
}

// Report is the JSON payload of the dsl and gems commands.
type Report struct {
	Command  string                `json:"command"`
	RunID    string                `json:"run_id,omitempty"`
	Outdir   string                `json:"outdir"`
	Verify   bool                  `json:"verify"`
	Diff     stubfile.Diff         `json:"diff"`
	Stubs    []store.StubRecord    `json:"stubs"`
	Failures []store.FailureRecord `json:"failures,omitempty"`
}

// finish verifies or writes o, records the run, and reports it.
func (s *session) finish(ctx context.Context, o *output, verify bool, dbPath string) error {
	f := s.formatter
	report := Report{
		Command:  o.command,
		Outdir:   o.outdir,
		Verify:   verify,
		Stubs:    o.stubs,
		Failures: o.failures,
	}
	if report.Stubs == nil {
		report.Stubs = []store.StubRecord{}
	}

	if verify {
		diff, err := stubfile.Compare(o.outdir, o.files, o.prune, o.keep...)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		report.Diff = diff
		if !diff.Empty() {
			if f.Format == "json" {
				_ = f.Error(ErrCodeOutOfDate, "stubs out of date", report)
			} else {
				fmt.Fprintf(f.Writer, "✗ Stubs in %s are out of date\n", o.outdir)
				writeDiff(f, diff)
				fmt.Fprintf(f.Writer, "\nRun `rbisynth %s` to update them.\n", o.command)
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%s: stubs out of date", ErrCodeOutOfDate))
		}
		return s.conclude(report, fmt.Sprintf("✓ Stubs in %s are up to date", o.outdir))
	}

	diff, err := stubfile.Write(o.outdir, o.files, o.prune, o.keep...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}
	report.Diff = diff

	if dbPath != "" {
		runID, err := s.record(ctx, dbPath, o)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		report.RunID = runID
	}

	return s.conclude(report, fmt.Sprintf("✓ Wrote %d stub(s) to %s", len(o.files), o.outdir))
}

func (s *session) record(ctx context.Context, dbPath string, o *output) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run := store.Run{
		ID:             s.ids.NewPassID(),
		Command:        o.command,
		Outdir:         o.outdir,
		SnapshotDigest: s.snapshotDigest,
		ToolVersion:    ir.ToolVersion,
		FormatVersion:  ir.FormatVersion,
		Stubs:          o.stubs,
		Failures:       o.failures,
	}
	if _, err := st.RecordRun(ctx, run); err != nil {
		return "", err
	}
	s.logger.Debug("run recorded", "run", run.ID, "stubs", len(run.Stubs), "failures", len(run.Failures))
	return run.ID, nil
}

// conclude prints the report and maps pass failures to ExitFailure.
func (s *session) conclude(report Report, headline string) error {
	f := s.formatter
	if len(report.Failures) > 0 {
		msg := fmt.Sprintf("%d pass(es) failed", len(report.Failures))
		if f.Format == "json" {
			_ = f.Error(ErrCodePassFailed, msg, report)
		} else {
			fmt.Fprintln(f.Writer, headline)
			writeDiff(f, report.Diff)
			fmt.Fprintf(f.Writer, "\n✗ %s\n", msg)
			for _, fr := range report.Failures {
				fmt.Fprintf(f.Writer, "  %s: %s\n", fr.Subject, fr.Message)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodePassFailed, msg))
	}

	if f.Format == "json" {
		return f.Success(report)
	}
	fmt.Fprintln(f.Writer, headline)
	writeDiff(f, report.Diff)
	return nil
}

func writeDiff(f *OutputFormatter, d stubfile.Diff) {
	for _, p := range d.Added {
		fmt.Fprintf(f.Writer, "  + %s\n", p)
	}
	for _, p := range d.Changed {
		fmt.Fprintf(f.Writer, "  ~ %s\n", p)
	}
	for _, p := range d.Removed {
		fmt.Fprintf(f.Writer, "  - %s\n", p)
	}
}
