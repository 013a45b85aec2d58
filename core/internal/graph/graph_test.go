package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleQuery(t *testing.T) {
	op, err := Parse(`{ users(id: 5) { id name } }`)
	require.NoError(t, err)
	assert.Equal(t, "query", op.Type)
	require.Len(t, op.Fields, 1)

	users := op.Fields[0]
	assert.Equal(t, "users", users.Name)
	require.Len(t, users.Children, 2)
	assert.Equal(t, "id", users.Children[0].Name)
	assert.Equal(t, "name", users.Children[1].Name)

	arg := users.GetArg("id")
	require.NotNil(t, arg)
	assert.Equal(t, NodeNum, arg.Type)
	assert.Equal(t, "5", arg.Val)
}

func TestParseNamedMutationWithVariableArg(t *testing.T) {
	op, err := Parse(`mutation CreatePost($title: String) {
		createPost(title: $title) { id }
	}`)
	require.NoError(t, err)
	assert.Equal(t, "mutation", op.Type)
	assert.Equal(t, "CreatePost", op.Name)

	field := op.Fields[0]
	arg := field.GetArg("title")
	require.NotNil(t, arg)
	assert.Equal(t, NodeVar, arg.Type)
	assert.Equal(t, "title", arg.Val)
}

func TestParseAlias(t *testing.T) {
	op, err := Parse(`{ firstUser: users { id } }`)
	require.NoError(t, err)
	field := op.Fields[0]
	assert.Equal(t, "firstUser", field.Alias)
	assert.Equal(t, "users", field.Name)
}

func TestParseListAndObjectArgs(t *testing.T) {
	op, err := Parse(`{ users(ids: [1, 2, 3], where: {active: true}) { id } }`)
	require.NoError(t, err)
	field := op.Fields[0]

	ids := field.GetArg("ids")
	require.NotNil(t, ids)
	assert.Equal(t, NodeList, ids.Type)
	require.Len(t, ids.Children, 3)
	assert.Equal(t, "2", ids.Children[1].Val)

	where := field.GetArg("where")
	require.NotNil(t, where)
	assert.Equal(t, NodeObj, where.Type)
	require.Len(t, where.Children, 1)
	assert.Equal(t, NodeBool, where.Children[0].Type)
}

func TestParseMissingBraceErrors(t *testing.T) {
	_, err := Parse(`users { id }`)
	assert.Error(t, err)
}

func TestParseUnterminatedSelectionSetErrors(t *testing.T) {
	_, err := Parse(`{ users { id `)
	assert.Error(t, err)
}
