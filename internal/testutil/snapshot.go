// Package testutil builds fake runtimes, deterministic pass IDs and golden
// assertions shared by tests across packages.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rbisynth/internal/introspect"
)

// SnapshotBuilder assembles a SnapshotDoc fluently.
//
//	rt := testutil.NewSnapshot().
//		Rails().
//		Class("Post", "ApplicationRecord", testutil.Scopes("published")).
//		Build(t)
type SnapshotBuilder struct {
	doc introspect.SnapshotDoc
}

// EntityOption adjusts one entity.
type EntityOption func(*introspect.EntityDoc)

func NewSnapshot() *SnapshotBuilder {
	return &SnapshotBuilder{}
}

// Class adds a class. superclass may be empty.
func (b *SnapshotBuilder) Class(name, superclass string, opts ...EntityOption) *SnapshotBuilder {
	return b.entity(introspect.EntityDoc{Name: name, Kind: "class", Superclass: superclass}, opts)
}

// Module adds a module.
func (b *SnapshotBuilder) Module(name string, opts ...EntityOption) *SnapshotBuilder {
	return b.entity(introspect.EntityDoc{Name: name, Kind: "module"}, opts)
}

// Anonymous adds an unnamed class.
func (b *SnapshotBuilder) Anonymous(superclass string, opts ...EntityOption) *SnapshotBuilder {
	return b.Class("", superclass, opts...)
}

// Package declares a package entities can belong to.
func (b *SnapshotBuilder) Package(name, version string) *SnapshotBuilder {
	b.doc.Packages = append(b.doc.Packages, introspect.Package{Name: name, Version: version})
	return b
}

// Rails adds ActiveRecord::Base and an abstract ApplicationRecord.
func (b *SnapshotBuilder) Rails() *SnapshotBuilder {
	return b.
		Class("ActiveRecord::Base", "").
		Class("ApplicationRecord", "ActiveRecord::Base", Abstract())
}

func (b *SnapshotBuilder) entity(ed introspect.EntityDoc, opts []EntityOption) *SnapshotBuilder {
	for _, opt := range opts {
		opt(&ed)
	}
	b.doc.Entities = append(b.doc.Entities, ed)
	return b
}

// Doc returns the assembled document.
func (b *SnapshotBuilder) Doc() introspect.SnapshotDoc {
	return b.doc
}

// Build constructs the snapshot, failing the test on error.
func (b *SnapshotBuilder) Build(t testing.TB) *introspect.Snapshot {
	t.Helper()
	s, err := introspect.NewSnapshot(b.doc)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return s
}

func Abstract() EntityOption {
	return func(ed *introspect.EntityDoc) { ed.Abstract = true }
}

func InPackage(name string) EntityOption {
	return func(ed *introspect.EntityDoc) { ed.Package = name }
}

func Includes(module string) EntityOption {
	return func(ed *introspect.EntityDoc) {
		ed.Mixins = append(ed.Mixins, introspect.MixinDoc{Kind: "include", Module: module})
	}
}

func Extends(module string) EntityOption {
	return func(ed *introspect.EntityDoc) {
		ed.Mixins = append(ed.Mixins, introspect.MixinDoc{Kind: "extend", Module: module})
	}
}

// DSL records values under a DSL key.
func DSL(key string, values ...string) EntityOption {
	return func(ed *introspect.EntityDoc) {
		if ed.DSL == nil {
			ed.DSL = make(map[string][]string)
		}
		ed.DSL[key] = append(ed.DSL[key], values...)
	}
}

// Scopes records named scopes.
func Scopes(names ...string) EntityOption {
	return DSL("scopes", names...)
}

func Constant(name, typ string) EntityOption {
	return func(ed *introspect.EntityDoc) {
		ed.Constants = append(ed.Constants, introspect.ConstantInfo{Name: name, Type: typ})
	}
}

// Method adds a method described by md.
func Method(md introspect.MethodDoc) EntityOption {
	return func(ed *introspect.EntityDoc) {
		ed.Methods = append(ed.Methods, md)
	}
}

// Params builds a raw parameter list from kind/name pairs.
func Params(pairs ...string) []introspect.RawParameter {
	var out []introspect.RawParameter
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, introspect.RawParameter{Kind: pairs[i], Name: pairs[i+1]})
	}
	return out
}

// Lookup returns the named entity, failing the test if it is absent.
func Lookup(t testing.TB, s *introspect.Snapshot, name string) introspect.Entity {
	t.Helper()
	e, ok := s.Lookup(name)
	if !ok {
		t.Fatalf("entity %s not in snapshot", name)
	}
	return e
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AssertGolden compares text with testdata/golden/<name>.golden in the
// calling package.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name, text string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(text))
}
