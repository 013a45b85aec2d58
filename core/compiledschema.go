package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/qbloq/viewql/core/internal/manifest"
	"github.com/qbloq/viewql/core/internal/psql"
	"github.com/qbloq/viewql/core/internal/qcode"
	"github.com/qbloq/viewql/core/internal/sdata"
)

// CompiledSchema is the immutable, boot-time output of C2+C3: one
// introspected database shape, one manifest of what its target can render,
// and one Compiler bound to both. A request never mutates a CompiledSchema,
// and nothing replaces it after boot: the drift Watcher (watcher.go) only
// logs differences.
type CompiledSchema struct {
	Name     string
	Schema   *sdata.DBInfo
	Manifest *manifest.Manifest
	Qcode    *qcode.Compiler
	Psql     *psql.Compiler
}

// BuildCompiledSchema introspects db and compiles a CompiledSchema named
// name, enforcing conf's table policies. Introspection happens once, here,
// never per-request.
func BuildCompiledSchema(ctx context.Context, name string, db *sql.DB, conf qcode.Config) (*CompiledSchema, error) {
	info, err := sdata.Introspect(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("compiledschema %s: %w", name, err)
	}

	man := manifest.Postgres()
	return &CompiledSchema{
		Name:     name,
		Schema:   info,
		Manifest: man,
		Qcode:    qcode.NewCompiler(info, conf),
		Psql:     psql.NewCompiler(man),
	}, nil
}

// CompiledSchemaSet holds one CompiledSchema per configured database,
// generalizing a single-database deployment into the degenerate case of a
// set with exactly one member. Every lookup goes through this type so the
// facade never special-cases "the" database versus "a named" one.
type CompiledSchemaSet struct {
	mu      sync.RWMutex
	schemas map[string]*CompiledSchema
	def     string
}

// NewCompiledSchemaSet returns an empty set; call Put to register at least
// one CompiledSchema before Get is usable.
func NewCompiledSchemaSet() *CompiledSchemaSet {
	return &CompiledSchemaSet{schemas: make(map[string]*CompiledSchema)}
}

// Put registers cs, making it the default when it's the first one added.
func (s *CompiledSchemaSet) Put(cs *CompiledSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[cs.Name] = cs
	if s.def == "" {
		s.def = cs.Name
	}
}

// Get returns the named CompiledSchema, or the default one when name is
// empty.
func (s *CompiledSchemaSet) Get(name string) (*CompiledSchema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.def
	}
	cs, ok := s.schemas[name]
	return cs, ok
}
