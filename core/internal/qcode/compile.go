package qcode

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gobuffalo/flect"

	"github.com/qbloq/viewql/core/internal/graph"
	"github.com/qbloq/viewql/core/internal/sdata"
)

// Compiler turns a parsed operation into a QCode against one introspected
// database. One Compiler is built per CompiledSchema and reused across
// requests; it holds no per-request state.
type Compiler struct {
	schema *sdata.DBInfo
	conf   Config
}

// NewCompiler returns a Compiler bound to schema, enforcing conf's table
// policies during compilation.
func NewCompiler(schema *sdata.DBInfo, conf Config) *Compiler {
	if conf.Tables == nil {
		conf.Tables = map[string]TConfig{}
	}
	if conf.Roles == nil {
		conf.Roles = map[string]map[string]TRConfig{}
	}
	return &Compiler{schema: schema, conf: conf}
}

// ParseName resolves a GraphQL field name to the backing table name: first
// checking an explicit TConfig mapping, then falling back to singularizing
// the GraphQL (plural, camelCase) convention into the SQL (singular,
// snake_case) one.
func (co *Compiler) ParseName(name string) (string, error) {
	if tc, ok := co.conf.Tables[name]; ok && tc.Name != "" {
		return tc.Name, nil
	}
	if _, ok := co.schema.GetTable(name); ok {
		return name, nil
	}
	snake := flect.Underscore(flect.Singularize(name))
	if _, ok := co.schema.GetTable(snake); ok {
		return snake, nil
	}
	return "", fmt.Errorf("qcode: unknown type %q", name)
}

// FindPath delegates to the schema's relationship graph. Kept as a Compiler
// method (rather than callers reaching into Compiler.schema directly) so the
// WHERE compiler and the Select compiler share one join-resolution path.
func (co *Compiler) FindPath(curr, prev, hint string) ([]sdata.TPath, error) {
	return co.schema.FindPath(prev, curr, hint)
}

// tablePolicy returns the resolved per-table policy for role, defaulting to
// a fully-open policy when the role has no explicit entry. authz.go applies
// the same open default one layer up; no default-block rule exists in either.
func (co *Compiler) tablePolicy(role, table string) TRConfig {
	if byTable, ok := co.conf.Roles[role]; ok {
		if tr, ok := byTable[table]; ok {
			return tr
		}
	}
	return TRConfig{}
}

// Compile parses query and resolves it, as role, into a QCode. vars is the
// raw JSON object of GraphQL variables referenced by $name arguments.
func (co *Compiler) Compile(query string, vars json.RawMessage, role string) (*QCode, error) {
	op, err := graph.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("qcode: %w", err)
	}

	var varMap map[string]json.RawMessage
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &varMap); err != nil {
			return nil, fmt.Errorf("qcode: invalid variables: %w", err)
		}
	}

	qc := &QCode{Schema: co.schema, Role: role}

	switch op.Type {
	case "mutation":
		qc.Type = QTMutation
	case "subscription":
		qc.Type = QTSubscription
	default:
		qc.Type = QTQuery
	}

	for _, f := range op.Fields {
		if op.Type == "mutation" {
			mt := GetQTypeByName(f.Name)
			m, err := co.compileMutate(f, mt, role, varMap)
			if err != nil {
				return nil, err
			}
			qc.Mutates = append(qc.Mutates, m)
			// A mutation's root field also selects a return shape, so it
			// gets a root Select joined to the mutated row. The field name
			// carries a verb prefix ("insert_users") that only compileMutate
			// understands; compileSelect needs the bare type name.
			retField := *f
			retField.Name = stripMutationVerb(f.Name, mt)
			sel, err := co.compileSelect(qc, &retField, -1, role, varMap)
			if err != nil {
				return nil, err
			}
			sel.Name = f.Name
			qc.Roots = append(qc.Roots, sel.ID)
			continue
		}

		if qc.Type == QTQuery {
			qc.Type = GetQTypeByName(f.Name)
			if qc.Type != QTQuery {
				qc.Type = QTQuery // plain reads never imply a mutation
			}
		}

		sel, err := co.compileSelect(qc, f, -1, role, varMap)
		if err != nil {
			return nil, err
		}
		qc.Roots = append(qc.Roots, sel.ID)
		if qc.Name == "" {
			qc.Name = f.Name
			qc.Typename = sel.Table.Name
		}
	}

	return qc, nil
}

func (co *Compiler) compileSelect(qc *QCode, f *graph.Node, parentID int32, role string, vars map[string]json.RawMessage) (*Select, error) {
	tableName, err := co.ParseName(f.Name)
	if err != nil {
		return nil, err
	}
	table, ok := co.schema.GetTable(tableName)
	if !ok {
		return nil, fmt.Errorf("qcode: no such table %q for field %q", tableName, f.Name)
	}

	policy := co.tablePolicy(role, tableName)
	id := int32(len(qc.Selects))

	sel := Select{ID: id, ParentID: parentID, Name: f.Name, Table: table}
	// Reserve this select's slot up front so its ID is its index in
	// qc.Selects and nested children can look it up while it is being built.
	qc.Selects = append(qc.Selects, sel)

	if parentID != -1 {
		path, err := co.FindPath(tableName, qc.Selects[parentID].Table.Name, "")
		if err != nil {
			return nil, fmt.Errorf("qcode: %s: %w", f.Name, err)
		}
		if len(path) > 0 {
			rel := sdata.PathToRel(path[len(path)-1])
			sel.Join = &Join{Rel: rel}
		}
	}

	for _, child := range f.Children {
		if len(child.Children) > 0 || hasFieldArgs(child) {
			cs, err := co.compileSelect(qc, child, id, role, vars)
			if err != nil {
				return nil, err
			}
			sel.Children = append(sel.Children, cs.ID)
			continue
		}
		sel.Fields = append(sel.Fields, Field{FieldType: FieldTypeCol, Name: fieldOutName(child), Col: child.Name})
	}

	if arg := f.GetArg("where"); arg != nil {
		ex, err := co.compileWhere(arg, table, vars)
		if err != nil {
			return nil, err
		}
		sel.Where = ex
	}
	if arg := f.GetArg("limit"); arg != nil {
		sel.Limit, _ = strconv.Atoi(arg.Val)
	} else if q := policy.Query; q != nil && q.Limit > 0 {
		sel.Limit = q.Limit
	}
	if arg := f.GetArg("offset"); arg != nil {
		sel.Offset, _ = strconv.Atoi(arg.Val)
		sel.Paging = PTOffset
	}
	if arg := f.GetArg("after"); arg != nil {
		sel.Cursor = arg.Val
		sel.Paging = PTCursor
	}
	if arg := f.GetArg("order_by"); arg != nil {
		sel.OrderBy = compileOrderBy(arg)
	}

	if policy.Query != nil && policy.Query.Block {
		sel.Skip = SkipTypeBlocked
	}

	qc.Selects[id] = sel
	return &qc.Selects[id], nil
}

// stripMutationVerb removes the "insert_"/"update_"/"upsert_"/"delete_"
// prefix GetQTypeByName matched, leaving the bare GraphQL type name a
// mutation's return-shape Select resolves against. Plain queries (mt ==
// QTQuery) have no prefix to strip.
func stripMutationVerb(name string, mt QType) string {
	var prefix string
	switch mt {
	case QTInsert:
		prefix = "insert_"
	case QTUpdate:
		prefix = "update_"
	case QTUpsert:
		prefix = "upsert_"
	case QTDelete:
		prefix = "delete_"
	default:
		return name
	}
	if hasPrefix(name, prefix) {
		return name[len(prefix):]
	}
	return name
}

// hasFieldArgs reports whether a leaf-looking field actually carries
// arguments (an aggregate function call shaped as a field, e.g. count()).
func hasFieldArgs(nd *graph.Node) bool {
	return len(nd.Args) > 0 && nd.Name != "where" && nd.Name != "order_by"
}

func fieldOutName(nd *graph.Node) string {
	if nd.Alias != "" {
		return nd.Alias
	}
	return nd.Name
}

func compileOrderBy(arg *graph.Node) []OrderBy {
	var out []OrderBy
	items := arg.Children
	if arg.Type != graph.NodeList {
		items = []*graph.Node{arg}
	}
	for _, it := range items {
		dir := OrderAsc
		col := it.Val
		if it.Type == graph.NodeObj && len(it.Children) == 1 {
			col = it.Children[0].Name
			switch it.Children[0].Val {
			case "desc":
				dir = OrderDesc
			case "desc_nulls_first":
				dir = OrderDescNullsFirst
			case "desc_nulls_last":
				dir = OrderDescNullsLast
			case "asc_nulls_first":
				dir = OrderAscNullsFirst
			case "asc_nulls_last":
				dir = OrderAscNullsLast
			}
		}
		out = append(out, OrderBy{Col: col, Order: dir})
	}
	return out
}

func (co *Compiler) compileMutate(f *graph.Node, mt QType, role string, vars map[string]json.RawMessage) (Mutate, error) {
	tableName, err := co.ParseName(stripMutationVerb(f.Name, mt))
	if err != nil {
		return Mutate{}, err
	}
	table, ok := co.schema.GetTable(tableName)
	if !ok {
		return Mutate{}, fmt.Errorf("qcode: no such table %q for mutation %q", tableName, f.Name)
	}

	m := Mutate{Table: table}
	switch mt {
	case QTInsert:
		m.Type = MTInsert
	case QTUpdate:
		m.Type = MTUpdate
	case QTUpsert:
		m.Type = MTUpsert
	case QTDelete:
		m.Type = MTDelete
	default:
		m.Type = MTNone
	}

	input := f.GetArg("input")
	if input == nil {
		input = f.GetArg("where")
	}
	if input == nil {
		return m, nil
	}
	if input.Type == graph.NodeList {
		m.Multi = true
		if len(input.Children) > 0 {
			input = input.Children[0]
		}
	}
	for _, c := range input.Children {
		arg, err := valueToArg(c, vars)
		if err != nil {
			return Mutate{}, err
		}
		arg.Name = c.Name
		m.Cols = append(m.Cols, MColumn{Col: c.Name, Arg: arg})
	}
	return m, nil
}

func valueToArg(nd *graph.Node, vars map[string]json.RawMessage) (Arg, error) {
	switch nd.Type {
	case graph.NodeVar:
		if raw, ok := vars[nd.Val]; ok {
			return Arg{Type: ArgTypeVal, Val: string(raw)}, nil
		}
		return Arg{Type: ArgTypeVar, Val: nd.Val}, nil
	default:
		return Arg{Type: ArgTypeVal, Val: nd.Val}, nil
	}
}
