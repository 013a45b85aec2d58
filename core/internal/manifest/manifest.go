// Package manifest is the capability surface the query translator (C6) and
// mutation dispatcher (C7) consult before rendering: what a target database
// can do (LATERAL joins, RETURNING, JSON aggregation, geo operators) and the
// exact SQL template to use for the features it supports. It replaces the
// teacher's sprawling per-dialect Dialect interface with a single data table
// per target, queried through three verbs: Supports, Template and Feature.
package manifest

import "fmt"

// Feature names one optional capability a target database may or may not
// have, for callers to query through Feature/Supports. The query translator
// in internal/psql does not consult them; it uses only the Template entries.
type Feature string

const (
	FeatureLateralJoin   Feature = "lateral_join"
	FeatureReturning     Feature = "returning"
	FeatureJSONAgg       Feature = "json_agg"
	FeatureWritableCTE   Feature = "writable_cte"
	FeatureFullText      Feature = "full_text"
	FeatureGeo           Feature = "geo"
	FeatureWindowLimit   Feature = "window_limit" // LIMIT inside an aggregate window
	FeatureArrayColumn   Feature = "array_column"
)

// Template names one SQL fragment whose exact syntax varies by target.
type Template string

const (
	TemplateLimit        Template = "limit"         // "LIMIT %d OFFSET %d" vs "OFFSET %d ROWS FETCH NEXT %d ROWS ONLY"
	TemplateJSONObject   Template = "json_object"    // json_build_object vs JSON_OBJECT
	TemplateJSONArrayAgg Template = "json_array_agg" // json_agg vs JSON_ARRAYAGG
	TemplateQuoteIdent   Template = "quote_ident"    // `"%s"` vs "[%s]" vs "`%s`"
	TemplateBindVar      Template = "bind_var"       // "$%d" vs "?" vs "@p%d"
	TemplateProcCall     Template = "proc_call"      // "SELECT * FROM %s(%s)"
)

// Manifest is the resolved capability+template table for one target.
type Manifest struct {
	Name       string
	features   map[Feature]bool
	templates  map[Template]string
}

// Feature reports whether f is declared at all for this target, and its
// value when it is -- distinguishing "unsupported" from "not modeled".
func (m *Manifest) Feature(f Feature) (bool, bool) {
	v, ok := m.features[f]
	return v, ok
}

// Supports is the common case: true only when f is declared and enabled.
func (m *Manifest) Supports(f Feature) bool {
	v, ok := m.features[f]
	return ok && v
}

// Template returns the SQL fragment registered for t, formatted with args.
// Panics on an unknown template name -- that's a programming error in the
// renderer, not a runtime condition to recover from.
func (m *Manifest) Template(t Template, args ...interface{}) string {
	tpl, ok := m.templates[t]
	if !ok {
		panic(fmt.Sprintf("manifest: %s has no %q template", m.Name, t))
	}
	if len(args) == 0 {
		return tpl
	}
	return fmt.Sprintf(tpl, args...)
}

// Postgres is the reference target manifest: the one this module's query
// translator and mutation dispatcher actually render against. Its feature
// set is deliberately the most permissive of the four spec targets --
// LATERAL joins, writable CTEs, native JSONB aggregation and PostGIS -- so
// it exercises every rendering path the others would only partially use.
func Postgres() *Manifest {
	return &Manifest{
		Name: "postgres",
		features: map[Feature]bool{
			FeatureLateralJoin: true,
			FeatureReturning:   true,
			FeatureJSONAgg:     true,
			FeatureWritableCTE: true,
			FeatureFullText:    true,
			FeatureGeo:         true,
			FeatureWindowLimit: true,
			FeatureArrayColumn: true,
		},
		templates: map[Template]string{
			TemplateLimit:        "LIMIT %d OFFSET %d",
			TemplateJSONObject:   "json_build_object(%s)",
			TemplateJSONArrayAgg: "coalesce(json_agg(%s), '[]')",
			TemplateQuoteIdent:   `"%s"`,
			TemplateBindVar:      "$%d",
			TemplateProcCall:     "SELECT * FROM %s(%s)",
		},
	}
}
