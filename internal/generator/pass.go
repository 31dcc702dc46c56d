package generator

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/signature"
)

// IDSource produces pass identifiers.
type IDSource interface {
	NewPassID() string
}

// UUIDv7Source generates time-sortable UUIDv7 pass IDs.
//
// Safe for concurrent use.
type UUIDv7Source struct{}

// NewPassID panics if UUID generation fails, which does not happen in
// practice.
func (UUIDv7Source) NewPassID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Pass is one generation pass: a fresh tree plus the per-pass state
// generators may read. Nothing in a Pass outlives the pass.
type Pass struct {
	ID      string
	Tree    *ir.Tree
	Runtime introspect.Runtime
	Names   *introspect.NameCache
	Logger  *slog.Logger
}

// NewPass starts a pass over rt with an empty tree and name cache.
func NewPass(id string, rt introspect.Runtime, logger *slog.Logger) *Pass {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pass{
		ID:      id,
		Tree:    ir.NewTree(),
		Runtime: rt,
		Names:   introspect.NewNameCache(rt),
		Logger:  logger.With("pass", id),
	}
}

// QualifiedName resolves e through the pass's name cache.
func (p *Pass) QualifiedName(e introspect.Entity) (string, error) {
	return p.Names.QualifiedName(e)
}

// Extract runs the signature extractor for m.
func (p *Pass) Extract(m introspect.Method) (ir.Method, error) {
	return signature.Extractor{Reflector: p.Runtime, Logger: p.Logger}.Extract(m)
}

// AddMethod adds m to ns. A method whose key is already declared is skipped
// and logged.
func (p *Pass) AddMethod(ns *ir.Namespace, m ir.Method) {
	if !ns.AddMethod(m) {
		p.Logger.Debug("method already declared, skipping",
			"namespace", ns.Name(),
			"method", m.Name,
			"kind", m.Kind)
	}
}
