package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/qcode"
	"github.com/qbloq/viewql/core/internal/sdata"
)

func usersTable() sdata.DBTable {
	return sdata.DBTable{Name: "users", DataCol: "data"}
}

func TestAuthorizeAllowsUnconfiguredTable(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{}}
	qc := &qcode.QCode{
		Role: "user",
		Selects: []qcode.Select{
			{Table: usersTable(), Fields: []qcode.Field{{Col: "id"}, {Col: "email"}}},
		},
	}
	require.NoError(t, az.Authorize(qc))
	assert.Len(t, qc.Selects[0].Fields, 2)
}

func TestAuthorizeBlockedTableIsDenyHard(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{
		"anon": {"users": {Query: &qcode.QueryConfig{Block: true}}},
	}}
	qc := &qcode.QCode{
		Role:    "anon",
		Selects: []qcode.Select{{Table: usersTable(), Fields: []qcode.Field{{Col: "id"}}}},
	}
	err := az.Authorize(qc)
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "users", authErr.Table)
}

func TestAuthorizeDropsUnlistedColumn(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{
		"user": {"users": {Query: &qcode.QueryConfig{Columns: []string{"id"}}}},
	}}
	qc := &qcode.QCode{
		Role: "user",
		Selects: []qcode.Select{
			{Table: usersTable(), Fields: []qcode.Field{{Col: "id"}, {Col: "ssn"}}},
		},
	}
	require.NoError(t, az.Authorize(qc))
	require.Len(t, qc.Selects[0].Fields, 1)
	assert.Equal(t, "id", qc.Selects[0].Fields[0].Col)
}

func TestAuthorizeMasksPrefixedColumn(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{
		"user": {"users": {Query: &qcode.QueryConfig{Columns: []string{"id", "-salary"}}}},
	}}
	qc := &qcode.QCode{
		Role: "user",
		Selects: []qcode.Select{
			{Table: usersTable(), Fields: []qcode.Field{{Col: "id"}, {Col: "salary"}}},
		},
	}
	require.NoError(t, az.Authorize(qc))
	require.Len(t, qc.Selects[0].Fields, 2)
	assert.True(t, qc.Selects[0].Fields[1].Masked)
}

func TestAuthorizeBuildsRoleFilter(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{
		"user": {"users": {Query: &qcode.QueryConfig{Filters: []string{`{"owner_id": "$user_id"}`}}}},
	}}
	qc := &qcode.QCode{
		Role:    "user",
		Selects: []qcode.Select{{Table: usersTable(), Fields: []qcode.Field{{Col: "id"}}}},
	}
	require.NoError(t, az.Authorize(qc))
	rf := qc.Selects[0].RoleFilter
	require.NotNil(t, rf)
	assert.Equal(t, qcode.OpEquals, rf.Op)
	assert.Equal(t, "owner_id", rf.Col)
	assert.Equal(t, qcode.ValVar, rf.ValType)
	assert.Equal(t, "user_id", rf.Val)
}

func TestAuthorizeMutationBlocked(t *testing.T) {
	az := &Authorizer{Roles: map[string]map[string]qcode.TRConfig{
		"user": {"users": {Delete: &qcode.DeleteConfig{Block: true}}},
	}}
	qc := &qcode.QCode{
		Role:    "user",
		Mutates: []qcode.Mutate{{Type: qcode.MTDelete, Table: usersTable()}},
	}
	err := az.Authorize(qc)
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "delete", authErr.Field)
}
