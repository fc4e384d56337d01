// Package schema describes the plugin descriptor document as an OpenAPI 3
// schema and validates decoded documents against it. It checks the shape of
// the document (required keys, value kinds, field type enum, unknown keys);
// cross-field rules such as "options iff ENUM" are left to spi.Validate.
package schema

import (
	"errors"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/opendmp/python-script-processor/sdk/api/spi"
)

// FieldDescription returns the schema of a single field description.
func FieldDescription() *openapi3.Schema {
	types := make([]any, 0, len(spi.FieldTypes()))
	for _, ft := range spi.FieldTypes() {
		types = append(types, string(ft))
	}
	s := openapi3.NewObjectSchema().
		WithProperty("type", openapi3.NewStringSchema().WithEnum(types...)).
		WithProperty("required", openapi3.NewBoolSchema()).
		WithProperty("helperText", openapi3.NewStringSchema()).
		WithProperty("options", openapi3.NewArraySchema().WithMinItems(1).WithItems(openapi3.NewStringSchema().WithMinLength(1))).
		WithProperty("properties", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	s.Required = []string{"type", "required"}
	closeObject(s)
	return s
}

// PluginConfiguration returns the schema of a complete plugin descriptor.
func PluginConfiguration() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("serviceName", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("displayName", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("type", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("fields", openapi3.NewObjectSchema().WithAdditionalProperties(FieldDescription()))
	s.Required = []string{"serviceName", "displayName", "type", "fields"}
	closeObject(s)
	return s
}

func closeObject(s *openapi3.Schema) {
	no := false
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: &no}
}

var descriptorSchema = PluginConfiguration()

// ValidateDocument validates a generically decoded JSON document (maps,
// slices, strings, float64, bool) against the descriptor schema. Failures are
// returned as *spi.DescriptorError naming the offending key.
func ValidateDocument(doc any) error {
	if doc == nil {
		return &spi.DescriptorError{Reason: "empty document"}
	}
	err := descriptorSchema.VisitJSON(doc)
	if err == nil {
		return nil
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		path := se.JSONPointer()
		if k, ok := unsupportedKey(se.Reason); ok && (len(path) == 0 || path[len(path)-1] != k) {
			path = append(path, k)
		}
		return &spi.DescriptorError{
			Path:   strings.Join(path, "."),
			Reason: se.Reason,
		}
	}
	return &spi.DescriptorError{Reason: err.Error()}
}

// unsupportedKey extracts the key from an additionalProperties rejection,
// which kin-openapi reports against the enclosing object.
func unsupportedKey(reason string) (string, bool) {
	rest, ok := strings.CutPrefix(reason, "property ")
	if !ok {
		return "", false
	}
	quoted, ok := strings.CutSuffix(rest, " is unsupported")
	if !ok {
		return "", false
	}
	k, err := strconv.Unquote(quoted)
	if err != nil {
		return "", false
	}
	return k, true
}
