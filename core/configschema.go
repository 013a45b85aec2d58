package core

import (
	"fmt"

	"cuelang.org/go/cue/cuecontext"
)

// configConstraints is a CUE schema describing the parts of Config that
// free-form YAML/JSON can't enforce by itself: every table and every role
// must carry a non-blank name. No other Config field is constrained here.
const configConstraints = `
tables: [...{
	name: string & !=""
	...
}]
roles: [...{
	name: string & !=""
	...
}]
`

// ValidateConstraints runs c through the CUE schema above, catching the
// shape mistakes Validate's Go-level checks don't: a blank table or role
// name that mapstructure/yaml would otherwise decode to the zero value
// silently. It runs once at boot, alongside Validate, never per request.
func (c *Config) ValidateConstraints() error {
	type tableDoc struct {
		Name string `json:"name"`
	}
	type roleDoc struct {
		Name string `json:"name"`
	}
	doc := struct {
		Tables []tableDoc `json:"tables"`
		Roles  []roleDoc  `json:"roles"`
	}{}
	for _, t := range c.Tables {
		doc.Tables = append(doc.Tables, tableDoc{Name: t.Name})
	}
	for _, r := range c.Roles {
		doc.Roles = append(doc.Roles, roleDoc{Name: r.Name})
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configConstraints)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("configschema: invalid constraint schema: %w", err)
	}

	val := ctx.Encode(doc)
	unified := schema.Unify(val)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("configschema: %w", err)
	}
	return nil
}
