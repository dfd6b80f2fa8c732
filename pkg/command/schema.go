package command

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// argumentShape mirrors the option/positional names of a single
// CommandNode. Schema does not use it: Schema builds its document by hand
// from n.Options and n.Positionals, not through invopop/jsonschema's
// reflection.
type argumentShape struct {
	properties map[string]ValueType
	required   []string
}

// Schema renders a JSON Schema document describing valid Arguments for n:
// each option becomes a named property typed per its ValueType, required
// options are listed, and allowed values become an enum constraint. This
// backs the --describe introspection flag on the demo binary so external
// tooling can generate forms or validate payloads without depending on the
// validator package directly.
func (n *CommandNode) Schema() (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}

	for _, opt := range n.Options {
		prop := &jsonschema.Schema{Type: schemaType(opt.Type)}
		for _, av := range opt.AllowedValues {
			prop.Enum = append(prop.Enum, av)
		}
		if opt.NumericRange != nil {
			if opt.NumericRange.Min != nil {
				prop.Minimum = json.Number(fmt.Sprintf("%g", *opt.NumericRange.Min))
			}
			if opt.NumericRange.Max != nil {
				prop.Maximum = json.Number(fmt.Sprintf("%g", *opt.NumericRange.Max))
			}
		}
		s.Properties.Set(opt.Name, prop)
		if opt.Required {
			s.Required = append(s.Required, opt.Name)
		}
	}

	if len(n.Positionals) > 0 {
		// Positional slots are heterogeneous; document the first slot's
		// type as representative.
		s.Properties.Set("_", &jsonschema.Schema{
			Type:  "array",
			Items: &jsonschema.Schema{Type: schemaType(n.Positionals[0].Type)},
		})
	}

	return s, nil
}

func schemaType(t ValueType) string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	default:
		return "string"
	}
}
