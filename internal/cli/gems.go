package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rbisynth/internal/config"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/store"
	"github.com/roach88/rbisynth/internal/stubfile"
	"github.com/roach88/rbisynth/internal/symtab"
)

// DefaultGemSigil is the strictness of gem stubs without an override.
const DefaultGemSigil = ir.SigilTrue

// GemsOptions holds flags for the gems command.
type GemsOptions struct {
	*RootOptions
	Snapshot string
	Outdir   string
	Exclude  []string
	Typed    []string
	Verify   bool
	DB       string
}

// NewGemsCommand creates the gems command.
func NewGemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GemsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gems [GEM...]",
		Short: "Generate symbol-table stubs for dependency packages",
		Long: `Write one stub file per package declaring every constant, mixin and
method the package defines.

With no gem names, every package in the snapshot that is not excluded is
processed and stale package stubs are removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGems(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "runtime snapshot file (.yaml, .json or .cue)")
	cmd.Flags().StringVarP(&opts.Outdir, "outdir", "o", config.DefaultGemsOutdir, "output directory")
	cmd.Flags().StringSliceVarP(&opts.Exclude, "exclude", "x", nil, "packages to skip")
	cmd.Flags().StringSliceVarP(&opts.Typed, "typed", "t", nil, "strictness overrides as gem:level")
	cmd.Flags().BoolVarP(&opts.Verify, "verify", "V", false, "check stubs are up to date without writing")
	cmd.Flags().StringVar(&opts.DB, "db", "", "manifest database to record the run in")

	return cmd
}

func runGems(opts *GemsOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, opts.Snapshot)
	if err != nil {
		return err
	}
	f := s.formatter

	outdir := opts.Outdir
	if !cmd.Flags().Changed("outdir") {
		outdir = s.cfg.Gems.Outdir
	}
	overrides, err := config.ParseTypedOverrides(opts.Typed)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	gemsCfg := s.cfg.Gems
	gemsCfg.TypedOverrides = config.MergeTypedOverrides(gemsCfg.TypedOverrides, overrides)
	exclude := append(append([]string{}, gemsCfg.Exclude...), opts.Exclude...)
	dbPath := opts.DB
	if dbPath == "" {
		dbPath = s.cfg.Store
	}

	pkgs, err := selectPackages(s.runtime, args, exclude)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	f.VerboseLog("Synthesizing %d package(s)", len(pkgs))

	synth := &symtab.Synthesizer{Runtime: s.runtime, Logger: s.logger, IDs: s.ids}
	res := synth.SynthesizeAll(pkgs)

	out := &output{command: "gems", outdir: outdir, prune: len(args) == 0}
	for _, st := range res.Stubs {
		sigil := gemsCfg.Sigil(st.Package.Name, DefaultGemSigil)
		out.add(stubfile.GemPath(st.Package), st.Package.String(), st.PassID, ir.Serialize(st.Tree, sigil), nil)
	}
	for _, pe := range res.Failures {
		out.failures = append(out.failures, store.FailureRecord{
			Subject: pe.Package.String(),
			PassID:  pe.PassID,
			Message: pe.Err.Error(),
		})
		out.keep = append(out.keep, stubfile.GemPath(pe.Package))
	}

	return s.finish(cmd.Context(), out, opts.Verify, dbPath)
}

// selectPackages resolves names, or takes every package when names is
// empty, then drops excluded ones.
func selectPackages(rt *introspect.Snapshot, names, exclude []string) ([]introspect.Package, error) {
	var pkgs []introspect.Package
	if len(names) == 0 {
		pkgs = rt.Packages()
	} else {
		var missing []string
		for _, n := range names {
			p, ok := rt.Package(n)
			if !ok {
				missing = append(missing, n)
				continue
			}
			pkgs = append(pkgs, p)
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("unknown gem(s): %s", strings.Join(missing, ", "))
		}
	}
	return slices.DeleteFunc(pkgs, func(p introspect.Package) bool {
		return slices.Contains(exclude, p.Name)
	}), nil
}
