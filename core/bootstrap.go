package core

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"

	"github.com/qbloq/viewql/core/internal/qcode"
)

// BuildEngine is the boot-time entry point that ties Config's multi-database
// registry to the facade: it normalizes conf, introspects and compiles one
// CompiledSchema per entry in conf.Databases, and registers each against the
// caller-supplied *sql.DB for that name. Connections are never opened here --
// dbs must already hold a live handle per database name, matching the
// facade's "bring your own *sql.DB" contract (C8 owns no pool/driver config).
func BuildEngine(ctx context.Context, conf Config, dbs map[string]*sql.DB) (*Engine, error) {
	conf.NormalizeDatabases()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	eng, err := NewEngine()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	if conf.SecretKey != "" {
		eng.CursorKey = deriveCursorKey(conf.SecretKey)
	} else if _, err := rand.Read(eng.CursorKey[:]); err != nil {
		return nil, fmt.Errorf("bootstrap: generating cursor key: %w", err)
	}

	tconf := buildQcodeConfig(conf)

	for name := range conf.Databases {
		db, ok := dbs[name]
		if !ok {
			return nil, fmt.Errorf("bootstrap: no database handle registered for %q", name)
		}
		cs, err := BuildCompiledSchema(ctx, name, db, tconf)
		if err != nil {
			return nil, err
		}
		eng.Schemas.Put(cs)
		eng.DBs[name] = db
	}

	eng.Authz = &Authorizer{Roles: buildRolePolicies(conf)}
	return eng, nil
}

// buildQcodeConfig translates the authored Config's table/role shapes into
// qcode.Config, the form the schema compiler enforces against.
func buildQcodeConfig(conf Config) qcode.Config {
	tc := qcode.Config{
		Tables: make(map[string]qcode.TConfig, len(conf.Tables)),
		Roles:  make(map[string]map[string]qcode.TRConfig, len(conf.Roles)),
	}
	for _, t := range conf.Tables {
		name := t.Table
		if name == "" {
			name = t.Name
		}
		tc.Tables[t.Name] = qcode.TConfig{Name: name, Blocklist: t.Blocklist, OrderBy: t.OrderBy}
	}
	for role, byTable := range buildRolePolicies(conf) {
		tc.Roles[role] = byTable
	}
	return tc
}

// buildRolePolicies compiles every Role's per-table RoleTable config into
// the role -> table -> TRConfig shape both the schema compiler and the
// authorization evaluator consult.
func buildRolePolicies(conf Config) map[string]map[string]qcode.TRConfig {
	out := make(map[string]map[string]qcode.TRConfig, len(conf.Roles))
	for _, role := range conf.Roles {
		byTable := make(map[string]qcode.TRConfig, len(role.Tables))
		for _, rt := range role.Tables {
			tr := qcode.TRConfig{ReadOnly: rt.ReadOnly}
			if rt.Query != nil {
				tr.Query = &qcode.QueryConfig{
					Limit: rt.Query.Limit, Filters: rt.Query.Filters,
					Columns: rt.Query.Columns, DisableFunctions: rt.Query.DisableFunctions,
					Block: rt.Query.Block,
				}
			}
			if rt.Insert != nil {
				tr.Insert = &qcode.InsertConfig{Filters: rt.Insert.Filters, Columns: rt.Insert.Columns, Presets: rt.Insert.Presets, Block: rt.Insert.Block}
			}
			if rt.Update != nil {
				tr.Update = &qcode.UpdateConfig{Filters: rt.Update.Filters, Columns: rt.Update.Columns, Presets: rt.Update.Presets, Block: rt.Update.Block}
			}
			if rt.Upsert != nil {
				tr.Upsert = &qcode.InsertConfig{Filters: rt.Upsert.Filters, Columns: rt.Upsert.Columns, Presets: rt.Upsert.Presets, Block: rt.Upsert.Block}
			}
			if rt.Delete != nil {
				tr.Delete = &qcode.DeleteConfig{Filters: rt.Delete.Filters, Columns: rt.Delete.Columns, Block: rt.Delete.Block}
			}
			byTable[rt.Name] = tr
		}
		out[role.Name] = byTable
	}
	return out
}

// deriveCursorKey turns an authored secret key into the 32-byte key
// EncryptCursor/DecryptCursor need by copying its first 32 bytes; a shorter
// secret leaves the remaining key bytes zero. No KDF is applied.
func deriveCursorKey(secret string) [32]byte {
	var key [32]byte
	copy(key[:], secret)
	return key
}
