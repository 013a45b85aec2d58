package core

import (
	"encoding/json"
	"fmt"

	"github.com/qbloq/viewql/core/internal/qcode"
)

// Decision is the outcome of evaluating one field against a role's policy.
type Decision int

const (
	Allow Decision = iota
	DenyHard // the whole operation is rejected
	DenySoft // the field is silently dropped from the selection
	Mask     // the field stays in the response shape but its value is nulled
)

// AuthError is returned when a DenyHard decision rejects an operation.
type AuthError struct {
	Table, Field, Role string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authz: role %q denied %s.%s", e.Role, e.Table, e.Field)
}

// Authorizer is C5: it evaluates a compiled QCode against the caller's role
// policies and rewrites it in place -- blocking whole selects, dropping or
// masking individual fields, and ANDing in row-level filters -- so the
// query translator (C6) never sees a field it isn't allowed to render.
type Authorizer struct {
	Roles map[string]map[string]qcode.TRConfig // role -> table -> policy
}

// Authorize evaluates every Select in qc under qc.Role and mutates it to
// reflect the resulting decisions. It returns an *AuthError the first time
// a DenyHard decision is hit.
func (az *Authorizer) Authorize(qc *qcode.QCode) error {
	for i := range qc.Selects {
		sel := &qc.Selects[i]
		policy := az.policyFor(qc.Role, sel.Table.Name)

		if policy.Query != nil && policy.Query.Block {
			return &AuthError{Table: sel.Table.Name, Field: "*", Role: qc.Role}
		}

		kept := sel.Fields[:0]
		for _, f := range sel.Fields {
			switch az.decideField(policy, f.Col) {
			case DenyHard:
				return &AuthError{Table: sel.Table.Name, Field: f.Col, Role: qc.Role}
			case DenySoft:
				continue
			case Mask:
				f.Masked = true
				kept = append(kept, f)
			default:
				kept = append(kept, f)
			}
		}
		sel.Fields = kept

		if policy.Query != nil {
			rf, err := buildRoleFilter(policy.Query.Filters)
			if err != nil {
				return fmt.Errorf("authz: role %q table %q: %w", qc.Role, sel.Table.Name, err)
			}
			sel.RoleFilter = rf
		}
	}

	for _, m := range qc.Mutates {
		policy := az.policyFor(qc.Role, m.Table.Name)
		if blocked, field := mutationBlocked(policy, m.Type); blocked {
			return &AuthError{Table: m.Table.Name, Field: field, Role: qc.Role}
		}
	}

	return nil
}

func (az *Authorizer) policyFor(role, table string) qcode.TRConfig {
	if byTable, ok := az.Roles[role]; ok {
		return byTable[table]
	}
	return qcode.TRConfig{}
}

// decideField resolves Allow/DenyHard/DenySoft/Mask for one column. A
// column not named in an explicit allow-list is a soft deny (dropped, not
// fatal) -- GraphQL clients routinely over-select, and that shouldn't fail
// the whole operation the way requesting a hard-blocked table does.
func (az *Authorizer) decideField(policy qcode.TRConfig, col string) Decision {
	if policy.Query == nil || len(policy.Query.Columns) == 0 {
		return Allow
	}
	for _, c := range policy.Query.Columns {
		if c == col {
			return Allow
		}
		if c == "-"+col {
			return Mask
		}
	}
	return DenySoft
}

func mutationBlocked(policy qcode.TRConfig, t qcode.MType) (bool, string) {
	switch t {
	case qcode.MTInsert:
		return policy.Insert != nil && policy.Insert.Block, "insert"
	case qcode.MTUpdate:
		return policy.Update != nil && policy.Update.Block, "update"
	case qcode.MTUpsert:
		return policy.Upsert != nil && policy.Upsert.Block, "upsert"
	case qcode.MTDelete:
		return policy.Delete != nil && policy.Delete.Block, "delete"
	default:
		return false, ""
	}
}

// buildRoleFilter compiles a role's configured filter strings (each a JSON
// object of column-equals-value pairs, e.g. `{"owner_id": "$user_id"}`)
// into a single ANDed Exp. Only equality is supported: a value starting
// with `$` names a session variable, any other value is compared as a
// string literal. Role filters exist to scope rows to the caller's own
// session, not to express arbitrary query logic.
func buildRoleFilter(filters []string) (*qcode.Exp, error) {
	var children []*qcode.Exp
	for _, f := range filters {
		var obj map[string]string
		if err := json.Unmarshal([]byte(f), &obj); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", f, err)
		}
		for col, val := range obj {
			ex := &qcode.Exp{Op: qcode.OpEquals, Col: col, Val: val, ValType: qcode.ValVar}
			if len(val) > 0 && val[0] == '$' {
				ex.Val = val[1:]
			} else {
				ex.ValType = qcode.ValStr
			}
			children = append(children, ex)
		}
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return &qcode.Exp{Op: qcode.OpAnd, Children: children}, nil
	}
}
