package sdata

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospectBuildsBoundTablesAndRelationships(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("FROM pg_catalog.pg_class").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "kind"}).
			AddRow("public", "users", "table").
			AddRow("public", "posts", "table"))

	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "users").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_array"}).
			AddRow("public", "users", "id", "uuid", false).
			AddRow("public", "users", "data", "jsonb", false))
	mock.ExpectQuery("FROM pg_index").WithArgs("public", "users").WillReturnRows(
		sqlmock.NewRows([]string{"attname"}).AddRow("id"))

	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "posts").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_array"}).
			AddRow("public", "posts", "id", "uuid", false).
			AddRow("public", "posts", "user_id", "uuid", false).
			AddRow("public", "posts", "data", "jsonb", false))
	mock.ExpectQuery("FROM pg_index").WithArgs("public", "posts").WillReturnRows(
		sqlmock.NewRows([]string{"attname"}).AddRow("id"))

	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("public", "users").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "ref_schema", "ref_table", "ref_column"}))
	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("public", "posts").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "ref_schema", "ref_table", "ref_column"}).
			AddRow("user_id", "public", "users", "id"))

	info, err := Introspect(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, info.tables, 2)

	users, ok := info.GetTable("users")
	require.True(t, ok)
	assert.Equal(t, "data", users.DataCol)

	_, ok = info.GetTable("posts")
	require.True(t, ok)

	path, err := info.FindPath("users", "posts", "")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "user_id", path[0].Rel.RightCol)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectSkipsTablesWithoutDataColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("FROM pg_catalog.pg_class").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "kind"}).AddRow("public", "migrations", "table"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "migrations").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_array"}).
			AddRow("public", "migrations", "version", "bigint", false))
	mock.ExpectQuery("FROM pg_index").WithArgs("public", "migrations").WillReturnRows(
		sqlmock.NewRows([]string{"attname"}))

	info, err := Introspect(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, info.tables, 0)
}
