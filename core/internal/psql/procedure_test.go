package psql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/manifest"
	"github.com/qbloq/viewql/core/internal/qcode"
)

func TestRenderMutationInsertCallsStoredProcedure(t *testing.T) {
	c := NewCompiler(manifest.Postgres())
	m := &qcode.Mutate{
		Type:  qcode.MTInsert,
		Table: usersTable(),
		Cols: []qcode.MColumn{
			{Col: "email", Arg: qcode.Arg{Val: "a@example.com"}},
			{Col: "name", Arg: qcode.Arg{Val: "Ada"}},
		},
	}

	plan, err := c.RenderMutation(m)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, `SELECT * FROM "public".fn_users_insert($1, $2)`)
	assert.Equal(t, []interface{}{"a@example.com", "Ada"}, plan.Args)
}

func TestRenderMutationWithReturningWrapsAsJSON(t *testing.T) {
	c := NewCompiler(manifest.Postgres())
	m := &qcode.Mutate{
		Type:      qcode.MTDelete,
		Table:     usersTable(),
		Returning: []qcode.Field{{Name: "id", Col: "id"}},
	}

	plan, err := c.RenderMutation(m)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "SELECT json_build_object('id', r.data->'id') AS result FROM")
	assert.Contains(t, plan.SQL, "fn_users_delete()")
}

func TestRenderMutationQueryTypeErrors(t *testing.T) {
	c := NewCompiler(manifest.Postgres())
	_, err := c.RenderMutation(&qcode.Mutate{Type: qcode.MTNone})
	assert.Error(t, err)
}
