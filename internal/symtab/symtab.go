// Package symtab synthesizes the full symbol table of a dependency package:
// every entity the package defines, with its constants, mixins and methods.
//
// Unlike generator passes there is no applicability check. Every named
// entity owned by the package is declared.
package symtab

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/signature"
)

// PackageError is a failure that aborted one package's pass.
type PackageError struct {
	Package introspect.Package
	PassID  string
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %v", e.Package, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

// Synthesizer builds one tree per package.
type Synthesizer struct {
	Runtime introspect.Runtime
	Logger  *slog.Logger
	IDs     generator.IDSource
}

// PackageStub is the synthesized tree for one package.
type PackageStub struct {
	Package introspect.Package
	PassID  string
	Tree    *ir.Tree
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Synthesizer) newPassID() string {
	if s.IDs == nil {
		return generator.UUIDv7Source{}.NewPassID()
	}
	return s.IDs.NewPassID()
}

// Synthesize declares every entity owned by pkg in a fresh tree.
func (s *Synthesizer) Synthesize(pkg introspect.Package) (*ir.Tree, error) {
	stub, err := s.synthesize(pkg)
	if err != nil {
		return nil, err
	}
	return stub.Tree, nil
}

func (s *Synthesizer) synthesize(pkg introspect.Package) (*PackageStub, error) {
	passID := s.newPassID()
	log := s.logger().With("package", pkg.String(), "pass", passID)
	names := introspect.NewNameCache(s.Runtime)
	extract := signature.Extractor{Reflector: s.Runtime, Logger: log}
	tree := ir.NewTree()

	for _, e := range s.Runtime.EntitiesOwnedBy(pkg) {
		name, err := names.QualifiedName(e)
		if err != nil {
			var anon *introspect.AnonymousEntityError
			if errors.As(err, &anon) {
				log.Debug("skipping unnamed entity", "entity", anon.Description)
				continue
			}
			return nil, &PackageError{Package: pkg, PassID: passID, Err: err}
		}
		if err := declare(tree, s.Runtime, extract, e, name); err != nil {
			return nil, &PackageError{Package: pkg, PassID: passID, Err: fmt.Errorf("entity %s: %w", name, err)}
		}
	}

	log.Debug("package synthesized", "namespaces", tree.Len())
	return &PackageStub{Package: pkg, PassID: passID, Tree: tree}, nil
}

func declare(tree *ir.Tree, rt introspect.Runtime, extract signature.Extractor, e introspect.Entity, name string) error {
	kind := rt.KindOf(e)
	var superclass string
	if kind == ir.ClassKind {
		superclass, _ = rt.SuperclassOf(e)
	}
	ns, err := tree.EnsureNamespace(name, kind, superclass)
	if err != nil {
		return err
	}

	for _, c := range rt.Constants(e) {
		var t ir.TypeExpr = ir.Unknown{}
		if c.Type != "" {
			if parsed, err := ir.ParseType(c.Type); err == nil {
				t = parsed
			}
		}
		if err := ns.AddConstant(c.Name, t); err != nil {
			return err
		}
	}

	for _, m := range rt.Mixins(e) {
		if err := ns.AddMixin(m.Kind, m.Module); err != nil {
			return err
		}
	}

	for _, kind := range []ir.MethodKind{ir.ClassMethod, ir.InstanceMethod} {
		for _, m := range rt.Methods(e, kind) {
			decl, err := extract.Extract(m)
			if err != nil {
				return err
			}
			ns.AddMethod(decl)
		}
	}
	return nil
}

// Result collects SynthesizeAll output in package order.
type Result struct {
	Stubs    []*PackageStub
	Failures []*PackageError
}

// Err joins every failure, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// SynthesizeAll runs one pass per package. A failing package yields no
// stub and does not stop the others.
func (s *Synthesizer) SynthesizeAll(pkgs []introspect.Package) *Result {
	res := &Result{}
	for _, pkg := range pkgs {
		stub, err := s.synthesize(pkg)
		if err != nil {
			var pe *PackageError
			if !errors.As(err, &pe) {
				pe = &PackageError{Package: pkg, Err: err}
			}
			s.logger().Warn("package failed",
				"package", pkg.String(),
				"pass", pe.PassID,
				"error", pe.Err)
			res.Failures = append(res.Failures, pe)
			continue
		}
		res.Stubs = append(res.Stubs, stub)
	}
	return res
}
