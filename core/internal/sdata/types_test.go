package sdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeTableSchema() *DBInfo {
	users := DBTable{Name: "users", DataCol: "data", Columns: []DBColumn{{Name: "id", Primary: true}}}
	posts := DBTable{Name: "posts", DataCol: "data", Columns: []DBColumn{
		{Name: "id", Primary: true},
		{Name: "user_id", ForeignKey: "users.id"},
	}}
	comments := DBTable{Name: "comments", DataCol: "data", Columns: []DBColumn{
		{Name: "id", Primary: true},
		{Name: "post_id", ForeignKey: "posts.id"},
	}}

	rels := []Rel{
		{Type: RelOneToMany, Left: users, LeftCol: "id", Right: posts, RightCol: "user_id"},
		{Type: RelOneToMany, Left: posts, LeftCol: "id", Right: comments, RightCol: "post_id"},
	}
	return NewDBInfo("postgres", []DBTable{users, posts, comments}, rels)
}

func TestGetTable(t *testing.T) {
	di := threeTableSchema()
	tbl, ok := di.GetTable("posts")
	require.True(t, ok)
	assert.Equal(t, "posts", tbl.Name)

	_, ok = di.GetTable("missing")
	assert.False(t, ok)
}

func TestGetColumn(t *testing.T) {
	di := threeTableSchema()
	tbl, _ := di.GetTable("posts")
	col, ok := tbl.GetColumn("user_id")
	require.True(t, ok)
	assert.Equal(t, "users.id", col.ForeignKey)

	_, ok = tbl.GetColumn("nope")
	assert.False(t, ok)
}

func TestFindPathSameTable(t *testing.T) {
	di := threeTableSchema()
	path, err := di.FindPath("users", "users", "")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPathDirect(t *testing.T) {
	di := threeTableSchema()
	path, err := di.FindPath("users", "posts", "")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "posts", path[0].Rel.Right.Name)
}

func TestFindPathShortestOverTwoHops(t *testing.T) {
	di := threeTableSchema()
	path, err := di.FindPath("users", "comments", "")
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, "posts", path[0].Rel.Right.Name)
	assert.Equal(t, "comments", path[1].Rel.Right.Name)
}

func TestFindPathUnreachable(t *testing.T) {
	di := threeTableSchema()
	_, err := di.FindPath("comments", "users", "")
	assert.Error(t, err)
}
