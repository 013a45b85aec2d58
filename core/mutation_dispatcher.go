package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/qbloq/viewql/core/internal/qcode"
)

// MutationError is returned when a mutation's stored procedure call fails.
type MutationError struct {
	Table string
	Verb  string
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation %s on %s: %v", e.Verb, e.Table, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// MutationDispatcher is C7: it takes the mutation half of a compiled QCode
// and executes each one as exactly one stored procedure call, never a raw
// INSERT/UPDATE/DELETE statement, so row-level invariants stay owned by the
// database, not duplicated in this module.
type MutationDispatcher struct {
	cs *CompiledSchema
	db *sql.DB
}

// NewMutationDispatcher returns a dispatcher that renders and executes
// mutations against db using cs's query translator and manifest.
func NewMutationDispatcher(cs *CompiledSchema, db *sql.DB) *MutationDispatcher {
	return &MutationDispatcher{cs: cs, db: db}
}

// Dispatch executes every mutation in qc, in compiled order, within a single
// transaction -- a GraphQL operation with multiple mutation root fields is
// still exactly one database round trip, matching the one-statement-per-
// request invariant at the transaction level even though it issues several
// procedure calls inside it.
func (d *MutationDispatcher) Dispatch(ctx context.Context, qc *qcode.QCode) ([]json.RawMessage, error) {
	if len(qc.Mutates) == 0 {
		return nil, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mutation_dispatcher: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	results := make([]json.RawMessage, 0, len(qc.Mutates))
	for _, m := range qc.Mutates {
		plan, err := d.cs.Psql.RenderMutation(&m)
		if err != nil {
			return nil, &MutationError{Table: m.Table.Name, Verb: verbName(m.Type), Err: err}
		}

		var raw json.RawMessage
		if len(m.Returning) > 0 {
			// Scanned as []byte so both string and []byte driver values
			// for the JSON result column are accepted.
			var b []byte
			row := tx.QueryRowContext(ctx, plan.SQL, plan.Args...)
			if err := row.Scan(&b); err != nil {
				return nil, &MutationError{Table: m.Table.Name, Verb: verbName(m.Type), Err: err}
			}
			raw = b
		} else if _, err := tx.ExecContext(ctx, plan.SQL, plan.Args...); err != nil {
			return nil, &MutationError{Table: m.Table.Name, Verb: verbName(m.Type), Err: err}
		}
		results = append(results, raw)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mutation_dispatcher: commit: %w", err)
	}
	return results, nil
}

func verbName(t qcode.MType) string {
	switch t {
	case qcode.MTInsert:
		return "insert"
	case qcode.MTUpdate:
		return "update"
	case qcode.MTUpsert:
		return "upsert"
	case qcode.MTDelete:
		return "delete"
	default:
		return "none"
	}
}
