// Package schema holds the canonical leave-request record schema and a
// compiled validator for free-form model output that bypassed the strict
// parse path.
package schema

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nullable builds a schema node accepting the given type or null.
func nullable(typ string, extra map[string]any) map[string]any {
	node := map[string]any{"type": []string{typ, "null"}}
	for k, v := range extra {
		node[k] = v
	}
	return node
}

// isoDatePattern matches YYYY-MM-DD. Validity of the calendar date itself is
// left to the compliance rules.
const isoDatePattern = `^\d{4}-\d{2}-\d{2}$`

// Properties is the canonical record schema, shaped for both jsonschema
// validation and the strict-parse tool definition.
var Properties = map[string]any{
	"schema_version": map[string]any{"type": "string"},
	"employer_name":  nullable("string", nil),
	"employee": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"full_name":        nullable("string", nil),
			"position":         nullable("string", nil),
			"department":       nullable("string", nil),
			"personnel_number": nullable("string", nil),
		},
	},
	"manager": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"full_name": nullable("string", nil),
			"position":  nullable("string", nil),
		},
	},
	"request_date": nullable("string", map[string]any{"pattern": isoDatePattern}),
	"leave": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"leave_type": map[string]any{
				"type": "string",
				"enum": []string{
					"annual_paid", "unpaid", "study", "maternity",
					"childcare", "other", "unknown",
				},
			},
			"start_date": nullable("string", map[string]any{"pattern": isoDatePattern}),
			"end_date":   nullable("string", map[string]any{"pattern": isoDatePattern}),
			"days_count": nullable("integer", nil),
			"comment":    nullable("string", nil),
		},
	},
	"signature_present": nullable("boolean", nil),
	"signature_confidence": nullable("number", map[string]any{
		"minimum": 0, "maximum": 1,
	}),
	"raw_text": nullable("string", nil),
	"quality": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_confidence": map[string]any{
				"type": "number", "minimum": 0, "maximum": 1,
			},
			"missing_fields": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"},
			},
			"notes": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"},
			},
		},
	},
}

// Required lists the top-level keys the models must always emit.
var Required = []string{"schema_version", "employee", "leave", "quality"}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compile() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc := map[string]any{
			"type":       "object",
			"properties": Properties,
			"required":   Required,
		}
		b, err := json.Marshal(doc)
		if err != nil {
			compileErr = eris.Wrap(err, "schema: marshal")
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
			compileErr = eris.Wrap(err, "schema: add resource")
			return
		}
		compiled, compileErr = compiler.Compile("record.json")
	})
	return compiled, compileErr
}

// Validate checks a decoded JSON payload against the canonical record
// schema. The payload must already be generic (map/slice/float) values,
// i.e. the result of json.Unmarshal into any.
func Validate(payload any) error {
	s, err := compile()
	if err != nil {
		return err
	}
	if err := s.Validate(payload); err != nil {
		return eris.Wrap(err, "schema: record does not match")
	}
	return nil
}
