package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rbisynth/internal/config"
	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/generator/aasm"
	"github.com/roach88/rbisynth/internal/generator/declarative"
	"github.com/roach88/rbisynth/internal/generator/relations"
	"github.com/roach88/rbisynth/internal/generator/scopes"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/store"
	"github.com/roach88/rbisynth/internal/stubfile"
)

// DSLOptions holds flags for the dsl command.
type DSLOptions struct {
	*RootOptions
	Snapshot    string
	Outdir      string
	Generators  []string
	Definitions []string
	Verify      bool
	DB          string
}

// NewDSLCommand creates the dsl command.
func NewDSLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DSLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dsl [CONSTANT...]",
		Short: "Generate stubs for runtime-defined methods",
		Long: `Run every registered generator over the application constants in the
snapshot and write one stub file per constant.

With no constants, every constant some generator applies to is processed
and stub files no longer produced are removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDSL(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "runtime snapshot file (.yaml, .json or .cue)")
	cmd.Flags().StringVarP(&opts.Outdir, "outdir", "o", config.DefaultDSLOutdir, "output directory")
	cmd.Flags().StringSliceVarP(&opts.Generators, "generators", "g", nil, "only run these generators")
	cmd.Flags().StringSliceVar(&opts.Definitions, "definitions", nil, "declarative generator definition files")
	cmd.Flags().BoolVarP(&opts.Verify, "verify", "V", false, "check stubs are up to date without writing")
	cmd.Flags().StringVar(&opts.DB, "db", "", "manifest database to record the run in")

	return cmd
}

func runDSL(opts *DSLOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, opts.Snapshot)
	if err != nil {
		return err
	}
	f := s.formatter

	outdir := opts.Outdir
	if !cmd.Flags().Changed("outdir") {
		outdir = s.cfg.DSL.Outdir
	}
	names := opts.Generators
	if !cmd.Flags().Changed("generators") {
		names = s.cfg.DSL.Generators
	}
	definitions := append(append([]string{}, s.cfg.DSL.Definitions...), opts.Definitions...)
	dbPath := opts.DB
	if dbPath == "" {
		dbPath = s.cfg.Store
	}

	registered, err := dslGenerators(s.runtime, definitions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDefinition, err.Error(), nil)
	}
	gens, err := generator.Select(registered, names)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	for _, g := range gens {
		f.VerboseLog("Generator %s applies to %d constant(s)", g.Name(), len(g.ApplicableEntities()))
	}

	entities, err := resolveConstants(s.runtime, args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	runner := &generator.Runner{
		Runtime:    s.runtime,
		Generators: gens,
		Logger:     s.logger,
		IDs:        s.ids,
	}
	res := runner.Run(entities)

	out := &output{command: "dsl", outdir: outdir, prune: len(args) == 0}
	for _, st := range res.Stubs {
		out.add(stubfile.DSLPath(st.Name), st.Name, st.PassID, ir.Serialize(st.Tree, ir.SigilStrong), st.Generators)
	}
	for _, pe := range res.Failures {
		out.failures = append(out.failures, store.FailureRecord{
			Subject:   pe.Entity,
			Generator: pe.Generator,
			PassID:    pe.PassID,
			Message:   pe.Err.Error(),
		})
		if _, err := ir.ParseQualifiedName(pe.Entity); err == nil {
			out.keep = append(out.keep, stubfile.DSLPath(pe.Entity))
		}
	}

	return s.finish(cmd.Context(), out, opts.Verify, dbPath)
}

// dslGenerators registers the built-in generators and then one generator
// per definition file, in order.
func dslGenerators(rt introspect.Runtime, definitions []string) ([]generator.Generator, error) {
	gens := []generator.Generator{
		relations.New(rt),
		scopes.New(rt),
		aasm.New(rt),
	}
	seen := map[string]bool{relations.Name: true, scopes.Name: true, aasm.Name: true}
	for _, path := range definitions {
		g, err := declarative.Load(rt, path)
		if err != nil {
			return nil, err
		}
		if seen[g.Name()] {
			return nil, fmt.Errorf("%s: generator %q is already registered", path, g.Name())
		}
		seen[g.Name()] = true
		gens = append(gens, g)
	}
	return gens, nil
}

// resolveConstants maps names to entities. No names means every loaded
// entity.
func resolveConstants(rt *introspect.Snapshot, names []string) ([]introspect.Entity, error) {
	if len(names) == 0 {
		return rt.LoadedEntities(), nil
	}
	var missing []string
	entities := make([]introspect.Entity, 0, len(names))
	for _, n := range names {
		e, ok := rt.Lookup(strings.TrimPrefix(n, "::"))
		if !ok {
			missing = append(missing, n)
			continue
		}
		entities = append(entities, e)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown constant(s): %s", strings.Join(missing, ", "))
	}
	return entities, nil
}
