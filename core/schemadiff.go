package core

import (
	"sort"

	"github.com/qbloq/viewql/core/internal/sdata"
)

// SchemaDiff reports how one introspected schema differs from another --
// the operation the drift watcher runs on a timer to decide whether to log
// a warning.
type SchemaDiff struct {
	AddedTables   []string
	RemovedTables []string
	ChangedTables []string
}

// Empty reports whether the two schemas were identical.
func (d SchemaDiff) Empty() bool {
	return len(d.AddedTables) == 0 && len(d.RemovedTables) == 0 && len(d.ChangedTables) == 0
}

// DiffSchemas compares the table sets of before and after, name by name,
// and reports additions, removals and column-level changes. It never
// inspects relationships -- a relationship change always shows up as a
// foreign-key column change on one side of it.
func DiffSchemas(before, after *sdata.DBInfo) SchemaDiff {
	beforeTables := indexByName(before.Tables())
	afterTables := indexByName(after.Tables())

	var d SchemaDiff
	for name := range afterTables {
		if _, ok := beforeTables[name]; !ok {
			d.AddedTables = append(d.AddedTables, name)
		}
	}
	for name, bt := range beforeTables {
		at, ok := afterTables[name]
		if !ok {
			d.RemovedTables = append(d.RemovedTables, name)
			continue
		}
		if !sameColumns(bt.Columns, at.Columns) {
			d.ChangedTables = append(d.ChangedTables, name)
		}
	}

	sort.Strings(d.AddedTables)
	sort.Strings(d.RemovedTables)
	sort.Strings(d.ChangedTables)
	return d
}

func indexByName(tables []sdata.DBTable) map[string]sdata.DBTable {
	m := make(map[string]sdata.DBTable, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}

func sameColumns(a, b []sdata.DBColumn) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]sdata.DBColumn, len(a))
	for _, c := range a {
		byName[c.Name] = c
	}
	for _, c := range b {
		prev, ok := byName[c.Name]
		if !ok || prev.Type != c.Type || prev.Array != c.Array {
			return false
		}
	}
	return true
}
