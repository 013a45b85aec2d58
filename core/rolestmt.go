package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// RoleResolver computes which role a caller maps to at request time,
// beyond the "user" and "anon" defaults, by evaluating a single SQL
// expression the database returns one value from: exactly one extra
// lookup query, never one per candidate role.
type RoleResolver struct {
	Roles      []Role
	RolesQuery string
	stmt       string
}

// Build compiles RolesQuery plus every role with a non-empty Match
// condition into one `CASE ... END` SQL expression. It must run once at
// boot, not per request -- the compiled statement is then available from
// Statement.
func (r *RoleResolver) Build() error {
	if r.RolesQuery == "" {
		return nil
	}
	if !strings.Contains(r.RolesQuery, "$user_id") {
		return fmt.Errorf("rolestmt: roles_query must reference $user_id")
	}

	w := &bytes.Buffer{}
	io.WriteString(w, `SELECT (CASE`)

	for _, role := range r.Roles {
		if role.Match == "" {
			continue
		}
		io.WriteString(w, ` WHEN `)
		io.WriteString(w, role.Match)
		io.WriteString(w, ` THEN '`)
		io.WriteString(w, role.Name)
		io.WriteString(w, `'`)
	}

	io.WriteString(w, ` ELSE 'user' END) FROM (`)
	io.WriteString(w, r.RolesQuery)
	io.WriteString(w, `) AS role_query LIMIT 1`)

	r.stmt = w.String()
	return nil
}

// Statement returns the compiled role-resolution SQL, or "" when no
// RolesQuery was configured (attribute-based roles are disabled).
func (r *RoleResolver) Statement() string {
	return r.stmt
}
