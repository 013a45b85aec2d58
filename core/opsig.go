package core

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// IntrospectionPolicy governs whether an unregistered (non-persisted)
// operation may be compiled at all. The core only exposes the policy enum
// and the hash-verification primitive below; composing them into a
// transport-level "persisted queries required" mode is left to the caller,
// since enforcement touches request auth, which this module doesn't own.
type IntrospectionPolicy int

const (
	IntrospectionDisabled IntrospectionPolicy = iota
	IntrospectionAuthenticated
	IntrospectionOpen
)

type opSig struct {
	Name string
	Role string
	Vars string
}

// OperationHash computes a stable identifier for one (query text, role,
// variables) combination: the value persisted-query allow lists key on.
// It is unsalted, unlike CacheScope.Fingerprint in cachescope.go, which is
// what the engine's plan memoization keys on.
func OperationHash(query, role string, vars json.RawMessage) (string, error) {
	h, err := hashstructure.Hash(opSig{Name: query, Role: role, Vars: string(vars)}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("opsig: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}

// VerifyOperationHash reports whether query/role/vars hashes to want,
// i.e. whether this is exactly the persisted operation the caller claims
// to be running under hash want.
func VerifyOperationHash(want, query, role string, vars json.RawMessage) (bool, error) {
	got, err := OperationHash(query, role, vars)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
