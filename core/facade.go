package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/qbloq/viewql/core/internal/qcode"
)

// tracer emits spans around Execute as a whole and around its
// compile+authorize and mutation dispatch steps. The
// spec places exporters out of scope, so this only ever emits to whatever
// TracerProvider the host process has configured globally; it never
// configures one itself.
var tracer = otel.Tracer("github.com/qbloq/viewql/core")

// Result is what one Execute call returns: the shaped JSON response plus
// any non-fatal validation errors the compiler or authorizer collected
// along the way.
type Result struct {
	Data   json.RawMessage
	Errors []qcode.ValidErr
	SQL    string // the single rendered statement, exposed for logging/tracing
}

// Request is everything Execute needs about one GraphQL call.
type Request struct {
	Database string
	Query    string
	Vars     json.RawMessage
	Role     string
	Name     string // operation name; Execute does not read it (the plan cache keys on Query, Vars and Role)
}

// Engine is C8: the single entry point that wires the capability manifest
// (C1), introspected schema + compiler (C2/C3), parser (C4), authorization
// (C5), query translator (C6) and mutation dispatcher (C7) into one
// Execute call per request.
type Engine struct {
	Schemas   *CompiledSchemaSet
	DBs       map[string]*sql.DB
	Authz     *Authorizer
	Scope     *CacheScope
	Plans     *PlanCache
	CursorKey [32]byte
}

// NewEngine returns an Engine ready to register CompiledSchemas via
// Schemas.Put and database handles via DBs.
func NewEngine() (*Engine, error) {
	plans, err := NewPlanCache(1000)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Schemas: NewCompiledSchemaSet(),
		DBs:     make(map[string]*sql.DB),
		Authz:   &Authorizer{Roles: map[string]map[string]qcode.TRConfig{}},
		Scope:   NewCacheScope(),
		Plans:   plans,
	}, nil
}

// Execute compiles, authorizes, renders and runs req as exactly one SQL
// round trip (queries: one SELECT; mutations: one transaction of stored
// procedure calls), returning the shaped JSON response.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "core.Execute", trace.WithAttributes(
		attribute.String("viewql.database", req.Database),
		attribute.String("viewql.role", req.Role),
	))
	defer span.End()

	cs, ok := e.Schemas.Get(req.Database)
	if !ok {
		return nil, recordErr(span, fmt.Errorf("facade: unknown database %q", req.Database))
	}
	db, ok := e.DBs[cs.Name]
	if !ok {
		return nil, recordErr(span, fmt.Errorf("facade: no connection for database %q", cs.Name))
	}

	key := e.Scope.Fingerprint(req.Query, req.Role, req.Vars)
	qc, cached := e.Plans.Get(key)
	span.SetAttributes(attribute.Bool("viewql.plan_cache_hit", cached))
	if !cached {
		_, compileSpan := tracer.Start(ctx, "core.compileAndAuthorize")
		var err error
		qc, err = cs.Qcode.Compile(req.Query, req.Vars, req.Role)
		if err != nil {
			compileSpan.End()
			return nil, recordErr(span, fmt.Errorf("facade: compile: %w", err))
		}
		if err := e.Authz.Authorize(qc); err != nil {
			compileSpan.End()
			return nil, recordErr(span, err)
		}
		e.Plans.Put(key, qc)
		compileSpan.End()
	}

	// Cursor resolution rewrites Select fields, so it runs on a per-request
	// copy and the plan held in e.Plans stays unchanged.
	run := *qc
	run.Selects = append([]qcode.Select(nil), qc.Selects...)
	qc = &run
	e.resolveCursors(qc)

	if len(qc.Mutates) > 0 {
		_, dispatchSpan := tracer.Start(ctx, "core.MutationDispatcher.Dispatch")
		dispatcher := NewMutationDispatcher(cs, db)
		rows, err := dispatcher.Dispatch(ctx, qc)
		dispatchSpan.End()
		if err != nil {
			return nil, recordErr(span, err)
		}
		data, err := shapeMutationResult(qc, rows)
		if err != nil {
			return nil, recordErr(span, err)
		}
		return &Result{Data: data, Errors: qc.Errors}, nil
	}

	plan, err := cs.Psql.Compile(qc)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("facade: translate: %w", err))
	}
	span.SetAttributes(attribute.String("viewql.sql", plan.SQL))

	row := db.QueryRowContext(ctx, plan.SQL, plan.Args...)
	var data json.RawMessage
	if err := row.Scan(&data); err != nil {
		return nil, recordErr(span, fmt.Errorf("facade: execute: %w", err))
	}

	return &Result{Data: data, Errors: qc.Errors, SQL: plan.SQL}, nil
}

// recordErr marks span as failed and returns err unchanged, so every
// Execute return path can stay a single line.
func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// resolveCursors decrypts each select's opaque `after` cursor in place. A
// cursor that fails to open is treated as absent, starting pagination over
// from the beginning rather than failing the request -- see DecryptCursor.
func (e *Engine) resolveCursors(qc *qcode.QCode) {
	for i := range qc.Selects {
		sel := &qc.Selects[i]
		if sel.Paging != qcode.PTCursor || sel.Cursor == "" {
			continue
		}
		if pt, ok := DecryptCursor(e.CursorKey, sel.Cursor); ok {
			sel.Cursor = string(pt)
		} else {
			sel.Cursor = ""
			sel.Paging = qcode.PTOffset
		}
	}
}

// shapeMutationResult assembles the per-mutation returned rows into one
// JSON object keyed by each mutation's root field name, matching the shape
// a query response would have had.
func shapeMutationResult(qc *qcode.QCode, rows []json.RawMessage) (json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(qc.Roots))
	for i, rootID := range qc.Roots {
		sel := qc.Selects[rootID]
		if i < len(rows) && len(rows[i]) > 0 {
			out[sel.Name] = rows[i]
		} else {
			out[sel.Name] = json.RawMessage("null")
		}
	}
	return json.Marshal(out)
}
