// Package psql renders a compiled QCode into the single SQL statement the
// spec requires: one round trip per GraphQL operation, built entirely from
// correlated subqueries so arbitrarily nested selections never become
// arbitrarily many queries. Every projected value is read from (or merged
// into) each table's JSONB `data` column, never assembled field-by-field in
// Go.
package psql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qbloq/viewql/core/internal/manifest"
	"github.com/qbloq/viewql/core/internal/qcode"
	"github.com/qbloq/viewql/core/internal/sdata"
)

// SqlPlan is one fully-bound SQL statement ready to execute: SQL has
// positional placeholders ($1, $2, ...) matching Args in order.
type SqlPlan struct {
	SQL  string
	Args []interface{}
}

// Compiler renders QCode into SqlPlan against one target manifest.
type Compiler struct {
	man *manifest.Manifest
}

// NewCompiler returns a Compiler that renders against man's capabilities
// and SQL templates.
func NewCompiler(man *manifest.Manifest) *Compiler {
	return &Compiler{man: man}
}

type renderer struct {
	c    *Compiler
	qc   *qcode.QCode
	args []interface{}
}

// Compile renders qc's selected root fields into one SELECT statement that
// returns a single JSON object keyed by each root field's GraphQL name.
func (c *Compiler) Compile(qc *qcode.QCode) (*SqlPlan, error) {
	r := &renderer{c: c, qc: qc}

	var parts []string
	for _, rootID := range qc.Roots {
		sel := &qc.Selects[rootID]
		if sel.Skip != qcode.SkipTypeNone {
			continue
		}
		sub, err := r.renderSelect(sel, "")
		if err != nil {
			return nil, err
		}
		parts = append(parts, fmt.Sprintf("'%s', %s", sel.Name, sub))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("psql: nothing to select")
	}

	sql := "SELECT " + r.man().Template(manifest.TemplateJSONObject, strings.Join(parts, ", "))
	return &SqlPlan{SQL: sql, Args: r.args}, nil
}

func quoteAlias(name string) string {
	return `"` + name + `"`
}

// renderSelect renders sel (and, recursively, its children) as a single
// parenthesized correlated-subquery expression: an aggregated JSON array
// for list selections, each row built from the table's `data` column
// merged with its resolved child arrays.
func (r *renderer) renderSelect(sel *qcode.Select, outerAlias string) (string, error) {
	alias := fmt.Sprintf("t%d", sel.ID)
	table := sel.Table

	proj, err := r.renderProjection(sel, alias)
	if err != nil {
		return "", err
	}

	var where []string
	if sel.Join != nil && outerAlias != "" {
		rel := sel.Join.Rel
		where = append(where, fmt.Sprintf("%s.%s = %s.%s",
			alias, quoteIdent(rel.RightCol), outerAlias, quoteIdent(rel.LeftCol)))
	}
	if sel.Where != nil {
		clause, err := r.renderExp(sel.Where, alias)
		if err != nil {
			return "", err
		}
		where = append(where, clause)
	}
	if sel.RoleFilter != nil {
		clause, err := r.renderExp(sel.RoleFilter, alias)
		if err != nil {
			return "", err
		}
		where = append(where, clause)
	}
	if sel.Paging == qcode.PTCursor && sel.Cursor != "" {
		where = append(where, fmt.Sprintf("%s.%s > %s", alias, quoteIdent(primaryKeyOf(table)), r.bind(sel.Cursor)))
	}

	inner := fmt.Sprintf("SELECT %s AS __row FROM %s.%s %s", proj, quoteIdent(table.Schema), quoteIdent(table.Name), alias)
	if len(where) > 0 {
		inner += " WHERE " + strings.Join(where, " AND ")
	}
	if len(sel.OrderBy) > 0 {
		inner += " ORDER BY " + renderOrderBy(sel.OrderBy)
	}
	if sel.Limit > 0 {
		inner += " " + r.man().Template(manifest.TemplateLimit, sel.Limit, sel.Offset)
	}

	return fmt.Sprintf("(SELECT %s FROM (%s) %s_rows)", r.man().Template(manifest.TemplateJSONArrayAgg, "__row"), inner, alias), nil
}

func (r *renderer) man() *manifest.Manifest { return r.c.man }

// renderProjection builds the JSON value for one row: the full `data`
// column when no fields were requested, or a field-pruned object built via
// the `->` extraction operator (never `->>`) so every projected value stays
// JSON-typed and composes cleanly with merged-in child arrays.
func (r *renderer) renderProjection(sel *qcode.Select, alias string) (string, error) {
	base := fmt.Sprintf("%s.%s", alias, quoteIdent(sel.Table.DataCol))

	if len(sel.Fields) > 0 {
		var pairs []string
		for _, f := range sel.Fields {
			switch {
			case f.Masked:
				pairs = append(pairs, fmt.Sprintf("'%s', null", f.Name))
			case f.FieldType == qcode.FieldTypeFunc:
				pairs = append(pairs, fmt.Sprintf("'%s', %s(%s.%s)", f.Name, f.Func, alias, quoteIdent(f.Col)))
			default:
				pairs = append(pairs, fmt.Sprintf("'%s', %s->'%s'", f.Name, base, f.Col))
			}
		}
		base = r.man().Template(manifest.TemplateJSONObject, strings.Join(pairs, ", "))
	}

	if len(sel.Children) == 0 {
		return base, nil
	}

	merged := base
	for _, childID := range sel.Children {
		child := &r.qc.Selects[childID]
		if child.Skip != qcode.SkipTypeNone {
			continue
		}
		sub, err := r.renderSelect(child, alias)
		if err != nil {
			return "", err
		}
		merged = fmt.Sprintf("(%s || %s)", merged, r.man().Template(manifest.TemplateJSONObject, fmt.Sprintf("'%s', %s", child.Name, sub)))
	}
	return merged, nil
}

func renderOrderBy(obs []qcode.OrderBy) string {
	parts := make([]string, 0, len(obs))
	for _, ob := range obs {
		dir := "ASC"
		switch ob.Order {
		case qcode.OrderDesc:
			dir = "DESC"
		case qcode.OrderAscNullsFirst:
			dir = "ASC NULLS FIRST"
		case qcode.OrderAscNullsLast:
			dir = "ASC NULLS LAST"
		case qcode.OrderDescNullsFirst:
			dir = "DESC NULLS FIRST"
		case qcode.OrderDescNullsLast:
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, fmt.Sprintf("%s %s", quoteIdent(ob.Col), dir))
	}
	return strings.Join(parts, ", ")
}

func primaryKeyOf(t sdata.DBTable) string {
	for _, c := range t.Columns {
		if c.Primary {
			return c.Name
		}
	}
	return "id"
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}

func (r *renderer) bind(v interface{}) string {
	r.args = append(r.args, v)
	return r.man().Template(manifest.TemplateBindVar, len(r.args))
}

// renderExp renders a compiled WHERE tree against alias, recursively.
func (r *renderer) renderExp(ex *qcode.Exp, alias string) (string, error) {
	switch ex.Op {
	case qcode.OpAnd, qcode.OpOr:
		if len(ex.Children) == 0 {
			return "TRUE", nil
		}
		sep := " AND "
		if ex.Op == qcode.OpOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(ex.Children))
		for _, c := range ex.Children {
			p, err := r.renderExp(c, alias)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+p+")")
		}
		return strings.Join(parts, sep), nil

	case qcode.OpNot:
		p, err := r.renderExp(ex.Children[0], alias)
		if err != nil {
			return "", err
		}
		return "NOT (" + p + ")", nil

	case qcode.OpSelectExists:
		rel := ex.Join.Rel
		inner := "TRUE"
		if ex.Join.Filter != nil {
			var err error
			inner, err = r.renderExp(ex.Join.Filter, "j"+strconv.Itoa(len(r.args)))
			if err != nil {
				return "", err
			}
		}
		jalias := "j" + strconv.Itoa(len(r.args))
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s.%s %s WHERE %s.%s = %s.%s AND %s)",
			quoteIdent(rel.Right.Schema), quoteIdent(rel.Right.Name), jalias,
			jalias, quoteIdent(rel.RightCol), alias, quoteIdent(rel.LeftCol), inner), nil

	case qcode.OpIsNull:
		return fmt.Sprintf("%s.%s IS NULL", alias, quoteIdent(ex.Col)), nil

	case qcode.OpIn, qcode.OpNotIn:
		ph := make([]string, 0, len(ex.ListVal))
		for _, v := range ex.ListVal {
			ph = append(ph, r.bind(v))
		}
		op := "IN"
		if ex.Op == qcode.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s.%s %s (%s)", alias, quoteIdent(ex.Col), op, strings.Join(ph, ", ")), nil

	default:
		op, ok := scalarOps[ex.Op]
		if !ok {
			return "", fmt.Errorf("psql: unsupported operator %v", ex.Op)
		}
		return fmt.Sprintf("%s.%s %s %s", alias, quoteIdent(ex.Col), op, r.renderVal(ex)), nil
	}
}

// renderVal renders the right-hand side of a scalar Exp. A ValVar
// references a session variable set by the caller (role filters compiled
// from config, e.g. "owner_id = $user_id") rather than a request-supplied
// literal, so it reads from current_setting instead of a bound parameter --
// the value lives in the database session, not in the Go args slice.
func (r *renderer) renderVal(ex *qcode.Exp) string {
	if ex.ValType == qcode.ValVar {
		return fmt.Sprintf("current_setting('viewql.%s', true)", ex.Val)
	}
	return r.bind(ex.Val)
}

var scalarOps = map[qcode.ExpOp]string{
	qcode.OpEquals:            "=",
	qcode.OpNotEquals:         "<>",
	qcode.OpGreaterThan:       ">",
	qcode.OpGreaterOrEquals:   ">=",
	qcode.OpLesserThan:        "<",
	qcode.OpLesserOrEquals:    "<=",
	qcode.OpLike:              "LIKE",
	qcode.OpNotLike:           "NOT LIKE",
	qcode.OpILike:             "ILIKE",
	qcode.OpNotILike:          "NOT ILIKE",
	qcode.OpSimilar:           "SIMILAR TO",
	qcode.OpNotSimilar:        "NOT SIMILAR TO",
	qcode.OpRegex:             "~",
	qcode.OpNotRegex:          "!~",
	qcode.OpIRegex:            "~*",
	qcode.OpNotIRegex:         "!~*",
	qcode.OpContains:          "@>",
	qcode.OpContainedIn:       "<@",
	qcode.OpHasKey:            "?",
	qcode.OpHasKeyAny:         "?|",
	qcode.OpHasKeyAll:         "?&",
	qcode.OpDistinct:          "IS DISTINCT FROM",
	qcode.OpNotDistinct:       "IS NOT DISTINCT FROM",
}
