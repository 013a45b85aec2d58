// Package qcode compiles a parsed GraphQL operation (internal/graph) plus
// the introspected database shape (internal/sdata) into a QCode: a fully
// resolved, role-scoped description of the single SQL statement the query
// translator must render. No SQL text is produced here — qcode only decides
// *what* the statement needs to select, join and filter.
package qcode

import "github.com/qbloq/viewql/core/internal/sdata"

// QType is the GraphQL operation kind a QCode was compiled for.
type QType int

const (
	QTQuery QType = iota
	QTSubscription
	QTMutation
	QTInsert
	QTUpdate
	QTUpsert
	QTDelete
)

// GetQTypeByName maps a mutation field name prefix to the QType it implies.
// GraphJin-style schemas name root mutation fields "insert_x"/"update_x"/
// "upsert_x"/"delete_x"; anything else compiles as a plain query.
func GetQTypeByName(name string) QType {
	switch {
	case hasPrefix(name, "insert_"):
		return QTInsert
	case hasPrefix(name, "update_"):
		return QTUpdate
	case hasPrefix(name, "upsert_"):
		return QTUpsert
	case hasPrefix(name, "delete_"):
		return QTDelete
	default:
		return QTQuery
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// SkipType marks why a Select was excluded from rendering, preserved on the
// node (rather than dropped) so callers can explain a response shape that
// omits a requested field.
type SkipType int

const (
	SkipTypeNone SkipType = iota
	SkipTypeUserNeeded
	SkipTypeBlocked
	SkipTypeDrop
	SkipTypeNulled
	SkipTypeRemote
	SkipTypeDatabaseJoin
)

// FieldType distinguishes a plain column projection from a SQL function call
// (count, sum, ...) requested via a GraphQL field alias.
type FieldType int

const (
	FieldTypeCol FieldType = iota
	FieldTypeFunc
)

// MType is the kind of mutation a root mutation field compiles to.
type MType int

const (
	MTNone MType = iota
	MTInsert
	MTUpdate
	MTUpsert
	MTDelete
	MTConnect
	MTDisconnect
	MTKeyword
)

// ValType tags the kind of value carried by an Arg or the right-hand side
// of an Exp.
type ValType int

const (
	ValStr ValType = iota
	ValNum
	ValBool
	ValList
	ValVar
	ValDBVar
	ValSubQuery
)

// ArgType tags where an Arg's value comes from.
type ArgType int

const (
	ArgTypeVal ArgType = iota
	ArgTypeCol
	ArgTypeVar
)

// Arg is one resolved GraphQL argument (limit, order_by, a mutation input
// field, ...).
type Arg struct {
	Name string
	Type ArgType
	Val  string
	Col  string
}

// SelType distinguishes a plain object selection from a polymorphic union.
type SelType int

const (
	SelTypeNone SelType = iota
	SelTypeUnion
)

// PagingType is the pagination strategy a Select was compiled with.
type PagingType int

const (
	PTOffset PagingType = iota
	PTCursor
)

// OrderDir is a SQL ORDER BY direction, including NULLS placement.
type OrderDir int

const (
	OrderAsc OrderDir = iota
	OrderDesc
	OrderAscNullsFirst
	OrderAscNullsLast
	OrderDescNullsFirst
	OrderDescNullsLast
)

// OrderBy is one column of a compiled ORDER BY clause.
type OrderBy struct {
	Col   string
	Order OrderDir
}

// GeoUnit is the distance unit a geo expression was written in.
type GeoUnit int

const (
	GeoUnitMeters GeoUnit = iota
	GeoUnitKilometers
	GeoUnitMiles
	GeoUnitFeet
)

// GeoExp carries the parameters of a PostGIS comparison (st_dwithin and
// friends) that don't fit the plain scalar Exp shape.
type GeoExp struct {
	SRID        int
	Unit        GeoUnit
	Point       []float64
	Polygon     [][]float64
	GeoJSON     []byte
	Distance    float64
	MinDistance float64
	DistanceVar string
	Spherical   bool
}

// ExpOp is a WHERE-tree node operator.
type ExpOp int

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpNot
	OpFalse
	OpEquals
	OpNotEquals
	OpEqualsTrue
	OpNotEqualsTrue
	OpGreaterThan
	OpGreaterOrEquals
	OpLesserThan
	OpLesserOrEquals
	OpIn
	OpNotIn
	OpLike
	OpNotLike
	OpILike
	OpNotILike
	OpSimilar
	OpNotSimilar
	OpRegex
	OpNotRegex
	OpIRegex
	OpNotIRegex
	OpContains
	OpContainedIn
	OpHasKey
	OpHasKeyAny
	OpHasKeyAll
	OpHasInCommon
	OpIsNull
	OpIsNotNull
	OpDistinct
	OpNotDistinct
	OpTsQuery
	OpJSONPath
	OpJSONPathText
	OpSelectExists
	OpGeoWithin
	OpGeoContains
	OpGeoIntersects
	OpGeoCoveredBy
	OpGeoCovers
	OpGeoTouches
	OpGeoOverlaps
	OpGeoNear
	OpGeoDistance
)

// Join is a nested-table hop introduced either by a relationship filter
// (OpSelectExists) or by a nested selection.
type Join struct {
	Rel    sdata.Rel
	Filter *Exp
}

// Exp is one node of a compiled WHERE tree. Leaf nodes carry Col/Val/ValType;
// boolean nodes (And/Or/Not) carry Children; OpSelectExists carries Join,
// whose own Filter is itself an Exp tree scoped to the joined table.
type Exp struct {
	Op       ExpOp
	Col      string
	Path     []string // JSON path segments, for the ->/->> operators
	Val      string
	ValType  ValType
	ListVal  []string
	ListType ValType
	Geo      *GeoExp
	Join     *Join
	Children []*Exp
}

// ValidErr is a non-fatal issue surfaced alongside a compiled QCode (an
// unknown argument, a blocked column silently dropped, ...).
type ValidErr struct {
	Message string
}

// Field is one selected output column or function call.
type Field struct {
	FieldType FieldType
	Name      string // GraphQL-facing name (alias, if any)
	Col       string // backing column name
	Func      string // SQL function name, when FieldType == FieldTypeFunc
	Args      []Arg
	Masked    bool // set by the authorization evaluator: render as null, not the real value
}

// MColumn is one column=value assignment of a mutation, in call order —
// order matters because C7 renders mutations as positional stored
// procedure calls, not as named-column INSERT/UPDATE statements.
type MColumn struct {
	Col string
	Arg Arg
}

// Mutate is one compiled mutation: a call into the table's backing stored
// procedure, never a raw INSERT/UPDATE/DELETE statement.
type Mutate struct {
	Type      MType
	Table     sdata.DBTable
	Cols      []MColumn
	Where     *Exp
	Returning []Field
	Multi     bool // true when the input was a list (batch mutation)
}

// Select is one GraphQL selection compiled against its backing table.
type Select struct {
	ID         int32
	ParentID   int32
	Name       string
	Table      sdata.DBTable
	Fields     []Field
	Children   []int32
	Where      *Exp
	RoleFilter *Exp // filter forced by the caller's role config, ANDed in
	OrderBy    []OrderBy
	Limit      int
	Offset     int
	Paging     PagingType
	Cursor     string
	Skip       SkipType
	SType      SelType
	Join       *Join // set on non-root selects: how this joins to its parent
}

// TConfig is the compiled, table-level configuration the schema compiler
// binds a GraphQL type to: name mapping, blocked columns, legal order-by
// columns. It mirrors core.Table but after name resolution.
type TConfig struct {
	Name      string
	Blocklist []string
	OrderBy   map[string][]string
}

// QueryConfig is the compiled per-role query policy for one table.
type QueryConfig struct {
	Limit            int
	Filters          []string
	Columns          []string
	DisableFunctions bool
	Block            bool
}

// InsertConfig is the compiled per-role insert/upsert policy for one table.
type InsertConfig struct {
	Filters []string
	Columns []string
	Presets map[string]string
	Block   bool
}

// UpdateConfig is the compiled per-role update policy for one table.
type UpdateConfig struct {
	Filters []string
	Columns []string
	Presets map[string]string
	Block   bool
}

// DeleteConfig is the compiled per-role delete policy for one table.
type DeleteConfig struct {
	Filters []string
	Columns []string
	Block   bool
}

// TRConfig bundles the per-operation policies configured for one
// (role, table) pair -- the unit authz.go resolves against.
type TRConfig struct {
	ReadOnly bool
	Query    *QueryConfig
	Insert   *InsertConfig
	Update   *UpdateConfig
	Upsert   *InsertConfig
	Delete   *DeleteConfig
}

// Config is the Compiler-wide configuration: table metadata plus the
// per-role table policies it enforces.
type Config struct {
	Tables map[string]TConfig
	Roles  map[string]map[string]TRConfig // role -> table -> policy
}

// QCode is the fully compiled result of one GraphQL operation: everything
// the query translator (C6) or mutation dispatcher (C7) needs, and nothing
// it has to re-derive from GraphQL or SQL text.
type QCode struct {
	Type      QType
	Name      string
	Typename  string
	Schema    *sdata.DBInfo
	Roots     []int32
	Selects   []Select
	Mutates   []Mutate
	ActionVar string
	Role      string
	Errors    []ValidErr
}
