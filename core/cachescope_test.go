package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbloq/viewql/core/internal/qcode"
)

func TestFingerprintStableForSameInput(t *testing.T) {
	cs := NewCacheScope()
	a := cs.Fingerprint("{ users { id } }", "user", []byte(`{"id":1}`))
	b := cs.Fingerprint("{ users { id } }", "user", []byte(`{"id":1}`))
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersByRole(t *testing.T) {
	cs := NewCacheScope()
	a := cs.Fingerprint("{ users { id } }", "user", nil)
	b := cs.Fingerprint("{ users { id } }", "anon", nil)
	assert.NotEqual(t, a, b)
}

func TestFingerprintDiffersAcrossScopes(t *testing.T) {
	a := NewCacheScope().Fingerprint("{ users { id } }", "user", nil)
	b := NewCacheScope().Fingerprint("{ users { id } }", "user", nil)
	assert.NotEqual(t, a, b)
}

func TestPlanCacheRoundTrip(t *testing.T) {
	pc, err := NewPlanCache(4)
	require.NoError(t, err)

	_, ok := pc.Get("missing")
	assert.False(t, ok)

	qc := &qcode.QCode{Name: "GetUsers"}
	pc.Put("k1", qc)

	got, ok := pc.Get("k1")
	require.True(t, ok)
	assert.Same(t, qc, got)
}

func TestPlanCacheIgnoresEmptyKey(t *testing.T) {
	pc, err := NewPlanCache(4)
	require.NoError(t, err)

	pc.Put("", &qcode.QCode{Name: "x"})
	_, ok := pc.Get("")
	assert.False(t, ok)
}
