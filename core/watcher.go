package core

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/qbloq/viewql/core/internal/sdata"
)

// Watcher periodically re-introspects a database and compares the result
// against the schema it was compiled with. A divergence only ever produces
// a log line -- it never mutates the CompiledSchema a request is running
// against, since a schema swap mid-request would break the one-statement
// invariant's assumption that the plan and the database agree.
type Watcher struct {
	cs       *CompiledSchema
	db       *sql.DB
	interval time.Duration
	log      *log.Logger
}

// NewWatcher returns a Watcher for cs, polling db every interval.
func NewWatcher(cs *CompiledSchema, db *sql.DB, interval time.Duration, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{cs: cs, db: db, interval: interval, log: logger}
}

// Run blocks, polling until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	current, err := sdata.Introspect(ctx, w.db)
	if err != nil {
		w.log.Printf("viewql: watcher: introspection for %s failed: %v", w.cs.Name, err)
		return
	}

	diff := DiffSchemas(w.cs.Schema, current)
	if diff.Empty() {
		return
	}
	w.log.Printf("viewql: watcher: schema drift on %s: added=%v removed=%v changed=%v",
		w.cs.Name, diff.AddedTables, diff.RemovedTables, diff.ChangedTables)
}
