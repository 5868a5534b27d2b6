package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaValidation is returned when a structured generation does not
// satisfy its schema.
var ErrSchemaValidation = errors.New("structured output failed schema validation")

// ReflectSchema builds an inline JSON schema for the Go value v.
func ReflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// ValidateAgainstSchema validates a JSON document against schema.
func ValidateAgainstSchema(schema *jsonschema.Schema, doc []byte) error {
	if schema == nil {
		return nil
	}
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, "marshal schema")
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrapf(ErrSchemaValidation, "%v", err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			descs = append(descs, e.String())
		}
		return errors.Wrap(ErrSchemaValidation, strings.Join(descs, "; "))
	}
	return nil
}

// GenerateObject runs a schema constrained generation and decodes the result
// into T. The schema is reflected from T.
func GenerateObject[T any](ctx context.Context, gen Generator, name string, messages []Message) (T, error) {
	var out T
	schema := ReflectSchema(out)
	raw, err := gen.GenerateJSON(ctx, messages, ObjectSchema{Name: name, Schema: schema})
	if err != nil {
		return out, errors.Wrapf(err, "generate %s", name)
	}
	raw = json.RawMessage(StripCodeFence(string(raw)))
	if err := ValidateAgainstSchema(schema, raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.Wrap(ErrSchemaValidation, err.Error())
	}
	return out, nil
}

// StripCodeFence removes a surrounding markdown code fence, which some models
// add around JSON even in structured mode.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
