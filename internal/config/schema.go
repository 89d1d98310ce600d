package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// Violation describes one schema violation found in a config file.
type Violation struct {
	// Field is the dotted path of the offending value.
	Field string
	// Description is the human-readable rule that was broken.
	Description string
}

// CheckSchema validates the YAML config file at path against the embedded
// JSON schema. A nil slice means the file conforms; violations describe
// every rule the file breaks. The error covers only reading and parsing,
// not conformance.
func CheckSchema(path string) ([]Violation, error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("read config: %w", readErr)
	}

	// yaml.v3 decodes string-keyed mappings into map[string]any, which is
	// what the schema loader expects on the document side.
	var doc any

	unmarshalErr := yaml.Unmarshal(raw, &doc)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse yaml: %w", unmarshalErr)
	}

	// An empty file means all-defaults; validate it as an empty document.
	if doc == nil {
		doc = map[string]any{}
	}

	result, validateErr := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if validateErr != nil {
		return nil, fmt.Errorf("validate schema: %w", validateErr)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		violations = append(violations, Violation{
			Field:       resultErr.Field(),
			Description: resultErr.Description(),
		})
	}

	return violations, nil
}
