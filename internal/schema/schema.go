// Package schema builds and enforces the JSON schemas handed to structured
// generation backends.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/product-research/internal/model"
)

// ErrNonConformant is returned when a document does not satisfy its schema.
var ErrNonConformant = eris.New("schema: document does not conform")

// Schema is a named target shape for structured generation.
type Schema struct {
	Name       string
	Definition *jsonschema.Definition

	raw    []byte
	loader gojsonschema.JSONLoader
}

// For reflects a Schema from a Go value using its json and description tags.
func For(name string, v any) (*Schema, error) {
	def, err := jsonschema.GenerateSchemaForType(v)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: generate %s", name)
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: marshal %s", name)
	}
	return &Schema{
		Name:       name,
		Definition: def,
		raw:        raw,
		loader:     gojsonschema.NewBytesLoader(raw),
	}, nil
}

// ProductDetails returns the schema for the synthesized product object.
func ProductDetails() (*Schema, error) {
	return For("product_details", model.ProductDetails{})
}

// JSON returns the schema document as compact JSON.
func (s *Schema) JSON() string {
	return string(s.raw)
}

// Validate checks doc against the schema. Violations are joined into a
// single ErrNonConformant-wrapped error.
func (s *Schema) Validate(doc []byte) error {
	result, err := gojsonschema.Validate(s.loader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return eris.Wrapf(err, "schema: validate %s", s.Name)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return eris.Wrapf(ErrNonConformant, "%s: %s", s.Name, strings.Join(msgs, "; "))
}

// Decode validates doc and unmarshals it into out.
func (s *Schema) Decode(doc []byte, out any) error {
	if err := s.Validate(doc); err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return eris.Wrapf(err, "schema: decode %s", s.Name)
	}
	return nil
}
