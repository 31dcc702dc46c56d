package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rbisynth/internal/config"
	"github.com/roach88/rbisynth/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB     string
	RunID  string
	File   string
	Outdir string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [dsl|gems]",
		Short: "Show recorded generation runs",
		Long: `Read the manifest database and show the latest run, optionally of one
command, or the run and pass that last produced a given stub file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := ""
			if len(args) == 1 {
				command = args[0]
			}
			return runHistory(opts, command, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "manifest database (default: store from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run instead of the latest")
	cmd.Flags().StringVar(&opts.File, "file", "", "show the record of one stub file")
	cmd.Flags().StringVarP(&opts.Outdir, "outdir", "o", "", "output directory the file belongs to (with --file)")

	return cmd
}

func runHistory(opts *HistoryOptions, command string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if command != "" && command != "dsl" && command != "gems" {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown command %q: want dsl or gems", command), nil)
	}

	dbPath := opts.DB
	if dbPath == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
		}
		dbPath = cfg.Store
	}
	if dbPath == "" {
		return f.Fail(ExitCommandError, ErrCodeStore, "no manifest database: pass --db or set store in "+config.DefaultFile, nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()
	ctx := cmd.Context()

	if opts.File != "" {
		outdir := opts.Outdir
		if outdir == "" {
			outdir = defaultOutdir(command)
		}
		rec, runID, err := st.StubByPath(ctx, outdir, opts.File)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
		}
		if f.Format == "json" {
			return f.Success(map[string]any{"run_id": runID, "stub": rec})
		}
		fmt.Fprintf(f.Writer, "%s\n  subject:    %s\n  run:        %s\n  pass:       %s\n  digest:     %s\n",
			rec.Path, rec.Subject, runID, rec.PassID, rec.Digest)
		if len(rec.Generators) > 0 {
			fmt.Fprintf(f.Writer, "  generators: %s\n", strings.Join(rec.Generators, ", "))
		}
		return nil
	}

	var run *store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx, command)
	}
	if errors.Is(err, store.ErrNoRuns) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if f.Format == "json" {
		return f.Success(run)
	}
	fmt.Fprintf(f.Writer, "Run %s (#%d): %s → %s\n", run.ID, run.Seq, run.Command, run.Outdir)
	fmt.Fprintf(f.Writer, "  snapshot %s, rbisynth %s, format %s\n", shortDigest(run.SnapshotDigest), run.ToolVersion, run.FormatVersion)
	fmt.Fprintf(f.Writer, "\nStubs (%d):\n", len(run.Stubs))
	for _, s := range run.Stubs {
		fmt.Fprintf(f.Writer, "  %s  %s  %s\n", s.Path, s.Subject, shortDigest(s.Digest))
	}
	if len(run.Failures) > 0 {
		fmt.Fprintf(f.Writer, "\nFailures (%d):\n", len(run.Failures))
		for _, fr := range run.Failures {
			fmt.Fprintf(f.Writer, "  %s: %s\n", fr.Subject, fr.Message)
		}
	}
	return nil
}

func defaultOutdir(command string) string {
	if command == "gems" {
		return config.DefaultGemsOutdir
	}
	return config.DefaultDSLOutdir
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
