package qcode

import (
	"encoding/json"
	"fmt"

	"github.com/qbloq/viewql/core/internal/graph"
	"github.com/qbloq/viewql/core/internal/sdata"
)

// opNames maps a GraphQL comparison argument name to the ExpOp it compiles
// to. Kept as one table rather than a long switch so adding an operator is
// a one-line change.
var opNames = map[string]ExpOp{
	"eq": OpEquals, "equals": OpEquals,
	"neq": OpNotEquals, "not_equals": OpNotEquals,
	"gt": OpGreaterThan, "greater_than": OpGreaterThan,
	"gte": OpGreaterOrEquals, "greater_or_equals": OpGreaterOrEquals,
	"lt": OpLesserThan, "lesser_than": OpLesserThan,
	"lte": OpLesserOrEquals, "lesser_or_equals": OpLesserOrEquals,
	"in": OpIn, "nin": OpNotIn, "not_in": OpNotIn,
	"like": OpLike, "nlike": OpNotLike, "not_like": OpNotLike,
	"ilike": OpILike, "nilike": OpNotILike, "not_ilike": OpNotILike,
	"similar": OpSimilar, "nsimilar": OpNotSimilar,
	"regex": OpRegex, "nregex": OpNotRegex,
	"iregex": OpIRegex, "niregex": OpNotIRegex,
	"contains": OpContains, "contained_in": OpContainedIn,
	"has_key": OpHasKey, "has_key_any": OpHasKeyAny, "has_key_all": OpHasKeyAll,
	"has_in_common": OpHasInCommon,
	"is_null":       OpIsNull,
	"distinct":      OpDistinct, "not_distinct": OpNotDistinct,
	"st_within": OpGeoWithin, "st_contains": OpGeoContains,
	"st_intersects": OpGeoIntersects, "st_coveredby": OpGeoCoveredBy,
	"st_covers": OpGeoCovers, "st_touches": OpGeoTouches,
	"st_overlaps": OpGeoOverlaps, "st_dwithin": OpGeoDistance,
}

// compileWhere compiles a "where" argument value into an Exp tree scoped to
// table. Top-level keys are either boolean combinators (and/or/not), a
// column name mapping to a {op: value} object, or the name of a related
// table, which compiles to an OpSelectExists join filter.
func (co *Compiler) compileWhere(arg *graph.Node, table sdata.DBTable, vars map[string]json.RawMessage) (*Exp, error) {
	return co.compileWhereNode(arg, table, vars)
}

func (co *Compiler) compileWhereNode(nd *graph.Node, table sdata.DBTable, vars map[string]json.RawMessage) (*Exp, error) {
	if nd.Type != graph.NodeObj {
		return nil, fmt.Errorf("qcode: where clause must be an object")
	}

	var children []*Exp
	for _, field := range nd.Children {
		ex, err := co.compileWhereField(field, table, vars)
		if err != nil {
			return nil, err
		}
		if ex != nil {
			children = append(children, ex)
		}
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return &Exp{Op: OpAnd, Children: children}, nil
	}
}

func (co *Compiler) compileWhereField(field *graph.Node, table sdata.DBTable, vars map[string]json.RawMessage) (*Exp, error) {
	switch field.Name {
	case "and", "or":
		op := OpAnd
		if field.Name == "or" {
			op = OpOr
		}
		items := field.Children
		if field.Type != graph.NodeList {
			items = []*graph.Node{field}
		}
		var children []*Exp
		for _, it := range items {
			ex, err := co.compileWhereNode(it, table, vars)
			if err != nil {
				return nil, err
			}
			if ex != nil {
				children = append(children, ex)
			}
		}
		return &Exp{Op: op, Children: children}, nil

	case "not":
		inner, err := co.compileWhereNode(field, table, vars)
		if err != nil {
			return nil, err
		}
		return &Exp{Op: OpNot, Children: []*Exp{inner}}, nil
	}

	if _, ok := table.GetColumn(field.Name); ok {
		return co.compileColumnOps(field, field.Name, vars)
	}

	// Not a column: treat as a relationship name and compile a nested
	// EXISTS filter against the related table, matching the spec's rule
	// that a nested filter never becomes a second round trip -- it's
	// folded into the same statement as a correlated subquery.
	relTable, err := co.ParseName(field.Name)
	if err != nil {
		return nil, err
	}
	right, ok := co.schema.GetTable(relTable)
	if !ok {
		return nil, fmt.Errorf("qcode: unknown where field %q on %s", field.Name, table.Name)
	}
	path, err := co.FindPath(relTable, table.Name, "")
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("qcode: no relationship from %s to %s", table.Name, relTable)
	}
	inner, err := co.compileWhereNode(field, right, vars)
	if err != nil {
		return nil, err
	}
	rel := sdata.PathToRel(path[len(path)-1])
	return &Exp{Op: OpSelectExists, Join: &Join{Rel: rel, Filter: inner}}, nil
}

func (co *Compiler) compileColumnOps(field *graph.Node, col string, vars map[string]json.RawMessage) (*Exp, error) {
	if field.Type != graph.NodeObj {
		// bare shorthand: { col: value } means { col: { eq: value } }
		return co.buildOp(col, OpEquals, field, vars)
	}

	var children []*Exp
	for _, opNode := range field.Children {
		op, ok := opNames[opNode.Name]
		if !ok {
			if opNode.Name == "is_null" {
				op = OpIsNull
			} else {
				return nil, fmt.Errorf("qcode: unknown operator %q on %s", opNode.Name, col)
			}
		}
		ex, err := co.buildOp(col, op, opNode, vars)
		if err != nil {
			return nil, err
		}
		children = append(children, ex)
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return &Exp{Op: OpAnd, Children: children}, nil
	}
}

func (co *Compiler) buildOp(col string, op ExpOp, val *graph.Node, vars map[string]json.RawMessage) (*Exp, error) {
	ex := &Exp{Op: op, Col: col}

	switch val.Type {
	case graph.NodeList:
		ex.ValType = ValList
		for _, item := range val.Children {
			ex.ListVal = append(ex.ListVal, item.Val)
		}
		return ex, nil
	case graph.NodeVar:
		if raw, ok := vars[val.Val]; ok {
			var v interface{}
			if err := json.Unmarshal(raw, &v); err == nil {
				if arr, ok := v.([]interface{}); ok {
					ex.ValType = ValList
					for _, item := range arr {
						ex.ListVal = append(ex.ListVal, fmt.Sprintf("%v", item))
					}
					return ex, nil
				}
			}
			ex.Val = string(raw)
			if s, ok := v.(string); ok {
				ex.Val = s
			}
			ex.ValType = ValStr
			return ex, nil
		}
		ex.Val = val.Val
		ex.ValType = ValVar
		return ex, nil
	case graph.NodeNum:
		ex.Val = val.Val
		ex.ValType = ValNum
		return ex, nil
	case graph.NodeBool:
		ex.Val = val.Val
		ex.ValType = ValBool
		return ex, nil
	default:
		ex.Val = val.Val
		ex.ValType = ValStr
		return ex, nil
	}
}
