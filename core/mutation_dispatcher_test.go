package core

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/manifest"
	"github.com/qbloq/viewql/core/internal/psql"
	"github.com/qbloq/viewql/core/internal/qcode"
	"github.com/qbloq/viewql/core/internal/sdata"
)

func testTableUsers() sdata.DBTable {
	return sdata.DBTable{Schema: "public", Name: "users", DataCol: "data", Columns: []sdata.DBColumn{{Name: "id", Primary: true}}}
}

func TestMutationDispatcherInsertCallsStoredProcedure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT \* FROM "public"\.fn_users_insert\(\$1\)`).WithArgs("a@example.com").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cs := &CompiledSchema{Name: "default", Psql: psql.NewCompiler(manifest.Postgres())}
	d := NewMutationDispatcher(cs, db)

	qc := &qcode.QCode{Mutates: []qcode.Mutate{
		{Type: qcode.MTInsert, Table: testTableUsers(), Cols: []qcode.MColumn{{Col: "email", Arg: qcode.Arg{Type: qcode.ArgTypeVal, Val: "a@example.com"}}}},
	}}

	_, err = d.Dispatch(context.Background(), qc)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationDispatcherWithReturningScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"result"}).AddRow(`{"id":"1"}`)
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)
	mock.ExpectCommit()

	cs := &CompiledSchema{Name: "default", Psql: psql.NewCompiler(manifest.Postgres())}
	d := NewMutationDispatcher(cs, db)

	qc := &qcode.QCode{Mutates: []qcode.Mutate{
		{
			Type:      qcode.MTInsert,
			Table:     testTableUsers(),
			Cols:      []qcode.MColumn{{Col: "email", Arg: qcode.Arg{Type: qcode.ArgTypeVal, Val: "a@example.com"}}},
			Returning: []qcode.Field{{Name: "id", Col: "id"}},
		},
	}}

	rowsOut, err := d.Dispatch(context.Background(), qc)
	require.NoError(t, err)
	require.Len(t, rowsOut, 1)
	assert.JSONEq(t, `{"id":"1"}`, string(rowsOut[0]))
}

func TestMutationDispatcherNoMutationsIsNoop(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cs := &CompiledSchema{Name: "default", Psql: psql.NewCompiler(manifest.Postgres())}
	d := NewMutationDispatcher(cs, db)

	rows, err := d.Dispatch(context.Background(), &qcode.QCode{})
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestMutationDispatcherRollsBackOnProcedureFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT \* FROM "public"\.fn_users_insert`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	cs := &CompiledSchema{Name: "default", Psql: psql.NewCompiler(manifest.Postgres())}
	d := NewMutationDispatcher(cs, db)

	qc := &qcode.QCode{Mutates: []qcode.Mutate{
		{Type: qcode.MTInsert, Table: testTableUsers(), Cols: []qcode.MColumn{{Col: "email", Arg: qcode.Arg{Type: qcode.ArgTypeVal, Val: "a@example.com"}}}},
	}}

	_, err = d.Dispatch(context.Background(), qc)
	require.Error(t, err)
	var mutErr *MutationError
	assert.ErrorAs(t, err, &mutErr)
}
