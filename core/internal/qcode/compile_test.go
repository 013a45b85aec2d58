package qcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/sdata"
)

func testSchema() *sdata.DBInfo {
	users := sdata.DBTable{Name: "users", DataCol: "data", Columns: []sdata.DBColumn{{Name: "id", Primary: true}, {Name: "email"}}}
	posts := sdata.DBTable{Name: "posts", DataCol: "data", Columns: []sdata.DBColumn{
		{Name: "id", Primary: true},
		{Name: "user_id", ForeignKey: "users.id"},
	}}
	rels := []sdata.Rel{
		{Type: sdata.RelOneToMany, Left: users, LeftCol: "id", Right: posts, RightCol: "user_id"},
	}
	return sdata.NewDBInfo("postgres", []sdata.DBTable{users, posts}, rels)
}

func TestCompileSimpleQuery(t *testing.T) {
	co := NewCompiler(testSchema(), Config{})
	qc, err := co.Compile(`{ users { id email } }`, nil, "user")
	require.NoError(t, err)

	assert.Equal(t, QTQuery, qc.Type)
	require.Len(t, qc.Roots, 1)
	root := qc.Selects[qc.Roots[0]]
	assert.Equal(t, "users", root.Table.Name)
	require.Len(t, root.Fields, 2)
	assert.Equal(t, "id", root.Fields[0].Col)
	assert.Equal(t, "email", root.Fields[1].Col)
}

func TestCompileNestedSelectionResolvesJoin(t *testing.T) {
	co := NewCompiler(testSchema(), Config{})
	qc, err := co.Compile(`{ users { id posts { id } } }`, nil, "user")
	require.NoError(t, err)

	root := qc.Selects[qc.Roots[0]]
	require.Len(t, root.Children, 1)
	child := qc.Selects[root.Children[0]]
	assert.Equal(t, "posts", child.Table.Name)
	require.NotNil(t, child.Join)
	assert.Equal(t, "user_id", child.Join.Rel.RightCol)
}

func TestCompileUnknownTypeErrors(t *testing.T) {
	co := NewCompiler(testSchema(), Config{})
	_, err := co.Compile(`{ widgets { id } }`, nil, "user")
	assert.Error(t, err)
}

func TestCompileLimitArg(t *testing.T) {
	co := NewCompiler(testSchema(), Config{})
	qc, err := co.Compile(`{ users(limit: 5) { id } }`, nil, "user")
	require.NoError(t, err)
	assert.Equal(t, 5, qc.Selects[qc.Roots[0]].Limit)
}

func TestCompileInsertMutation(t *testing.T) {
	co := NewCompiler(testSchema(), Config{})
	qc, err := co.Compile(`mutation { insert_users(input: {email: "a@example.com"}) { id } }`, nil, "user")
	require.NoError(t, err)

	require.Len(t, qc.Mutates, 1)
	m := qc.Mutates[0]
	assert.Equal(t, MTInsert, m.Type)
	require.Len(t, m.Cols, 1)
	assert.Equal(t, "email", m.Cols[0].Col)
	assert.Equal(t, "a@example.com", m.Cols[0].Arg.Val)
}

func TestParseNameUsesTableConfigOverride(t *testing.T) {
	co := NewCompiler(testSchema(), Config{Tables: map[string]TConfig{"people": {Name: "users"}}})
	name, err := co.ParseName("people")
	require.NoError(t, err)
	assert.Equal(t, "users", name)
}
