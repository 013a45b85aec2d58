package core

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/sdata"
)

func TestWatcherCheckLogsDriftWithoutMutatingSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("FROM pg_catalog.pg_class").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "kind"}).AddRow("public", "widgets", "table"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "widgets").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_array"}).
			AddRow("public", "widgets", "id", "uuid", false).
			AddRow("public", "widgets", "data", "jsonb", false))
	mock.ExpectQuery("FROM pg_index").WithArgs("public", "widgets").WillReturnRows(
		sqlmock.NewRows([]string{"attname"}))
	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("public", "widgets").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "ref_schema", "ref_table", "ref_column"}))

	original := sdata.NewDBInfo("postgres", nil, nil)
	cs := &CompiledSchema{Name: "default", Schema: original}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	w := NewWatcher(cs, db, 0, logger)

	w.check(context.Background())

	assert.Contains(t, buf.String(), "schema drift on default")
	assert.Same(t, original, cs.Schema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatcherCheckNoDriftLogsNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("FROM pg_catalog.pg_class").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "kind"}))

	cs := &CompiledSchema{Name: "default", Schema: sdata.NewDBInfo("postgres", nil, nil)}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	w := NewWatcher(cs, db, 0, logger)

	w.check(context.Background())

	assert.Empty(t, buf.String())
}
