package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSupports(t *testing.T) {
	m := Postgres()
	assert.True(t, m.Supports(FeatureLateralJoin))
	assert.True(t, m.Supports(FeatureReturning))
	assert.True(t, m.Supports(FeatureGeo))

	v, ok := m.Feature(FeatureLateralJoin)
	assert.True(t, ok)
	assert.True(t, v)
}

func TestFeatureUndeclaredIsNotSupported(t *testing.T) {
	m := Postgres()
	v, ok := m.Feature("not_a_real_feature")
	assert.False(t, ok)
	assert.False(t, v)
	assert.False(t, m.Supports("not_a_real_feature"))
}

func TestTemplateFormatsArgs(t *testing.T) {
	m := Postgres()
	require.Equal(t, `"orders"`, m.Template(TemplateQuoteIdent, "orders"))
	require.Equal(t, "LIMIT 10 OFFSET 20", m.Template(TemplateLimit, 10, 20))
}

func TestTemplateNoArgsReturnsRaw(t *testing.T) {
	m := Postgres()
	assert.Equal(t, "SELECT * FROM %s(%s)", m.Template(TemplateProcCall))
}

func TestTemplateUnknownPanics(t *testing.T) {
	m := Postgres()
	assert.Panics(t, func() {
		m.Template("not_a_real_template")
	})
}
