// Package sdata models the shape of a database as discovered by
// introspection: tables (views backing GraphQL types), their JSONB data
// column, and the relationships between them that the compiler walks to
// resolve nested selections and filters into joins.
package sdata

import "fmt"

// RelType classifies how two tables relate to each other.
type RelType int

const (
	RelNone RelType = iota
	RelOneToOne
	RelOneToMany
	RelRecursive
	RelPolymorphic
)

// DBColumn describes a single column on a DBTable.
type DBColumn struct {
	Name       string
	Type       string
	Primary    bool
	Array      bool
	FullText   bool
	ForeignKey string // "table.column" when this column is a foreign key
}

// DBTable is a single GraphQL-facing view or table: always carries a
// JSONB `data` column plus the identity/foreign-key columns needed to
// join and filter without unpacking that column.
type DBTable struct {
	Schema    string
	Name      string
	Type      string // "view", "table" or "materialized_view"
	Columns   []DBColumn
	DataCol   string // name of the JSONB projection column, usually "data"
	Procedure string // backing stored procedure name, for mutation targets
}

// GetColumn returns the named column, case-sensitive, or false if absent.
func (t DBTable) GetColumn(name string) (DBColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return DBColumn{}, false
}

// Rel is a directed relationship between two tables: Left is the table
// being joined from, Right the table being joined to. Which side holds the
// foreign key depends on Type.
type Rel struct {
	Type       RelType
	Left       DBTable
	LeftCol    string
	Right      DBTable
	RightCol   string
}

// TPath is one hop of a resolved join path between two tables.
type TPath struct {
	Rel Rel
}

// PathToRel extracts the relationship carried by a path hop. Kept as a
// function, not a field access, so callers don't need to know TPath grows
// more fields later (edge hints, polymorphic discriminants).
func PathToRel(p TPath) Rel {
	return p.Rel
}

// DBInfo is the full introspected shape of one target database: every
// table the schema compiler is allowed to bind against, plus the
// relationship graph between them.
type DBInfo struct {
	dbType string
	tables map[string]DBTable
	rels   map[string][]Rel // keyed by left table name
}

// NewDBInfo builds a DBInfo from the given tables and relationships.
func NewDBInfo(dbType string, tables []DBTable, rels []Rel) *DBInfo {
	di := &DBInfo{
		dbType: dbType,
		tables: make(map[string]DBTable, len(tables)),
		rels:   make(map[string][]Rel),
	}
	for _, t := range tables {
		di.tables[t.Name] = t
	}
	for _, r := range rels {
		di.rels[r.Left.Name] = append(di.rels[r.Left.Name], r)
	}
	return di
}

// DBType reports the target database family ("postgres", "mysql", ...).
func (di *DBInfo) DBType() string { return di.dbType }

// GetTable looks up a table by its GraphQL-facing name.
func (di *DBInfo) GetTable(name string) (DBTable, bool) {
	t, ok := di.tables[name]
	return t, ok
}

// Tables returns every table known to this schema, in no particular order.
func (di *DBInfo) Tables() []DBTable {
	out := make([]DBTable, 0, len(di.tables))
	for _, t := range di.tables {
		out = append(out, t)
	}
	return out
}

// FindPath resolves the join path from table `from` to table `to`. It does
// a breadth-first search over the relationship graph so the shortest path
// (fewest joins) is always returned, matching the one-statement-per-request
// invariant: every extra hop is an extra join, never an extra round trip.
func (di *DBInfo) FindPath(from, to, through string) ([]TPath, error) {
	if from == to {
		return nil, nil
	}

	type frame struct {
		table string
		path  []TPath
	}

	visited := map[string]bool{from: true}
	queue := []frame{{table: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, r := range di.rels[cur.table] {
			if through != "" && r.Right.Name != through && r.Right.Name != to {
				continue
			}
			if visited[r.Right.Name] {
				continue
			}
			path := append(append([]TPath{}, cur.path...), TPath{Rel: r})
			if r.Right.Name == to {
				return path, nil
			}
			visited[r.Right.Name] = true
			queue = append(queue, frame{table: r.Right.Name, path: path})
		}
	}

	return nil, fmt.Errorf("sdata: no join path from %q to %q", from, to)
}
