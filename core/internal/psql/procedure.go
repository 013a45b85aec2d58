package psql

import (
	"fmt"
	"strings"

	"github.com/qbloq/viewql/core/internal/manifest"
	"github.com/qbloq/viewql/core/internal/qcode"
)

// verbSuffix names the stored procedure convention this dispatcher calls:
// every mutable table exposes fn_<table>_<verb>(col1, col2, ...) returning
// the affected row(s). Rendering a literal INSERT/UPDATE/DELETE statement
// is never an option here -- the procedure is the one place row-level
// invariants (audit columns, derived fields, cascades) are allowed to live.
func verbSuffix(t qcode.MType) (string, error) {
	switch t {
	case qcode.MTInsert:
		return "insert", nil
	case qcode.MTUpdate:
		return "update", nil
	case qcode.MTUpsert:
		return "upsert", nil
	case qcode.MTDelete:
		return "delete", nil
	default:
		return "", fmt.Errorf("psql: mutation has no procedure verb")
	}
}

// RenderMutation renders one compiled mutation as a single stored
// procedure call. Arguments are passed positionally in the order Cols was
// compiled in -- column name ordering is the dispatcher's contract with
// the procedure signature, not something resolved by name at call time.
func (c *Compiler) RenderMutation(m *qcode.Mutate) (*SqlPlan, error) {
	verb, err := verbSuffix(m.Type)
	if err != nil {
		return nil, err
	}

	r := &renderer{c: c}
	proc := fmt.Sprintf("%s.fn_%s_%s", quoteIdent(m.Table.Schema), m.Table.Name, verb)

	placeholders := make([]string, 0, len(m.Cols))
	for _, col := range m.Cols {
		placeholders = append(placeholders, r.bind(argValue(col.Arg)))
	}

	call := c.man.Template(manifest.TemplateProcCall, proc, strings.Join(placeholders, ", "))

	if len(m.Returning) == 0 {
		return &SqlPlan{SQL: call, Args: r.args}, nil
	}

	var pairs []string
	for _, f := range m.Returning {
		pairs = append(pairs, fmt.Sprintf("'%s', %s->'%s'", f.Name, "r.data", f.Col))
	}
	proj := c.man.Template(manifest.TemplateJSONObject, strings.Join(pairs, ", "))
	sql := fmt.Sprintf("SELECT %s AS result FROM (%s) r", proj, call)
	return &SqlPlan{SQL: sql, Args: r.args}, nil
}

func argValue(a qcode.Arg) interface{} {
	return a.Val
}
