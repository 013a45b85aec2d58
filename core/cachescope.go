package core

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rs/xid"

	"github.com/qbloq/viewql/core/internal/qcode"
)

// CacheScope computes a fingerprint for one (operation text, role,
// variables) combination. No tenant identifier is part of the fingerprint;
// the only scoping beyond those three inputs is the per-instance salt. It
// exists purely to key the compiled QCode memoization below -- response
// bodies are never cached here, that storage concern stays with the
// transport, not this module (see spec Non-goals).
type CacheScope struct {
	salt string
}

// NewCacheScope returns a scope with its own unique salt, so two CacheScope
// instances (and so two engines) never produce the same fingerprint for a
// shared PlanCache.
func NewCacheScope() *CacheScope {
	return &CacheScope{salt: xid.New().String()}
}

type scopeKey struct {
	Query string
	Vars  string
	Role  string
}

// Fingerprint returns a stable key for query/vars/role, suitable for use as
// a PlanCache key or an OperationHash salt domain.
func (cs *CacheScope) Fingerprint(query, role string, vars json.RawMessage) string {
	h, err := hashstructure.Hash(scopeKey{Query: query, Vars: string(vars), Role: role}, hashstructure.FormatV2, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%016x", cs.salt, h)
}

// PlanCache memoizes compiled QCode values by CacheScope fingerprint, so a
// repeated operation (the overwhelmingly common case for GraphQL clients,
// which send the same few named queries over and over) skips re-parsing and
// re-resolving the GraphQL AST on every request. It never holds SQL results
// or response bodies -- only the compiled plan, which is immutable and safe
// to share across callers of the same operation once authorization has
// resolved distinctly per role.
type PlanCache struct {
	cache *lru.Cache[string, *qcode.QCode]
}

// NewPlanCache returns a PlanCache holding at most size compiled plans.
func NewPlanCache(size int) (*PlanCache, error) {
	c, err := lru.New[string, *qcode.QCode](size)
	if err != nil {
		return nil, err
	}
	return &PlanCache{cache: c}, nil
}

// Get returns the cached QCode for key, if present.
func (pc *PlanCache) Get(key string) (*qcode.QCode, bool) {
	if key == "" {
		return nil, false
	}
	return pc.cache.Get(key)
}

// Put stores qc under key.
func (pc *PlanCache) Put(key string, qc *qcode.QCode) {
	if key == "" {
		return
	}
	pc.cache.Add(key, qc)
}
