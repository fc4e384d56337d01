package spi

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func sampleConfig() PluginConfiguration {
	return PluginConfiguration{
		ServiceName: "sample-processor",
		DisplayName: "Sample Processor",
		Type:        CategoryScript,
		Fields: map[string]FieldDescription{
			"code":     {Type: FieldCode, Required: true, HelperText: "Script"},
			"language": {Type: FieldEnum, Required: true, Options: []string{"PYTHON", "CLOJURE"}},
			"limit":    {Type: FieldNumber, Properties: map[string]any{"min": "0", "nested": map[string]any{"a": []any{"b"}}}},
		},
	}
}

func TestFieldLookup(t *testing.T) {
	c := sampleConfig()
	f, ok := c.Field("code")
	if !ok {
		t.Fatalf("expected code field")
	}
	if f.Type != FieldCode || !f.Required || f.HelperText != "Script" {
		t.Fatalf("unexpected field: %#v", f)
	}
	if f, ok := c.Field("missing"); ok {
		t.Fatalf("expected missing field to be absent, got %#v", f)
	}
}

func TestFieldNamesSorted(t *testing.T) {
	got := sampleConfig().FieldNames()
	want := []string{"code", "language", "limit"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FieldNames = %v; want %v", got, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := sampleConfig()
	cp := c.Clone()
	if !reflect.DeepEqual(c, cp) {
		t.Fatalf("clone differs from original")
	}
	cp.Fields["language"].Options[0] = "RUBY"
	cp.Fields["limit"].Properties["nested"].(map[string]any)["a"].([]any)[0] = "z"
	delete(cp.Fields, "code")
	if c.Fields["language"].Options[0] != "PYTHON" {
		t.Fatalf("options shared with clone")
	}
	if c.Fields["limit"].Properties["nested"].(map[string]any)["a"].([]any)[0] != "b" {
		t.Fatalf("nested properties shared with clone")
	}
	if _, ok := c.Fields["code"]; !ok {
		t.Fatalf("fields map shared with clone")
	}
}

func TestFieldReturnsCopy(t *testing.T) {
	c := sampleConfig()
	f, _ := c.Field("language")
	f.Options[0] = "RUBY"
	if c.Fields["language"].Options[0] != "PYTHON" {
		t.Fatalf("Field leaked internal options slice")
	}
}

func TestFieldTypeValid(t *testing.T) {
	for _, ft := range FieldTypes() {
		if !ft.Valid() {
			t.Fatalf("%s should be valid", ft)
		}
	}
	for _, ft := range []FieldType{"", "code", "SELECT"} {
		if ft.Valid() {
			t.Fatalf("%q should be invalid", ft)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PluginConfiguration)
		path   string
	}{
		{"valid", func(c *PluginConfiguration) {}, ""},
		{"empty fields map", func(c *PluginConfiguration) { c.Fields = map[string]FieldDescription{} }, ""},
		{"missing service name", func(c *PluginConfiguration) { c.ServiceName = "" }, "serviceName"},
		{"blank display name", func(c *PluginConfiguration) { c.DisplayName = "  " }, "displayName"},
		{"missing category", func(c *PluginConfiguration) { c.Type = "" }, "type"},
		{"nil fields", func(c *PluginConfiguration) { c.Fields = nil }, "fields"},
		{"unknown field type", func(c *PluginConfiguration) {
			c.Fields["code"] = FieldDescription{Type: "SCRIPT"}
		}, "fields.code.type"},
		{"enum without options", func(c *PluginConfiguration) {
			c.Fields["language"] = FieldDescription{Type: FieldEnum}
		}, "fields.language.options"},
		{"enum with empty option", func(c *PluginConfiguration) {
			c.Fields["language"] = FieldDescription{Type: FieldEnum, Options: []string{"A", ""}}
		}, "fields.language.options[1]"},
		{"empty options on non-enum", func(c *PluginConfiguration) {
			c.Fields["code"] = FieldDescription{Type: FieldString, Options: []string{}}
		}, "fields.code.options"},
		{"empty options on enum", func(c *PluginConfiguration) {
			c.Fields["language"] = FieldDescription{Type: FieldEnum, Options: []string{}}
		}, "fields.language.options"},
		{"options on non-enum", func(c *PluginConfiguration) {
			c.Fields["code"] = FieldDescription{Type: FieldCode, Options: []string{"x"}}
		}, "fields.code.options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.path == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
			}
			var de *DescriptorError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DescriptorError, got %T", err)
			}
			if de.Path != tt.path {
				t.Fatalf("path = %q; want %q", de.Path, tt.path)
			}
		})
	}
}

func TestDescriptorErrorMessage(t *testing.T) {
	err := &DescriptorError{Path: "fields.code.type", Reason: `unknown field type "X"`}
	want := `invalid plugin descriptor: fields.code.type: unknown field type "X"`
	if err.Error() != want {
		t.Fatalf("Error() = %q; want %q", err.Error(), want)
	}
	err = &DescriptorError{Reason: "empty document"}
	if err.Error() != "invalid plugin descriptor: empty document" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestFieldDescriptionValidateStandalone(t *testing.T) {
	err := FieldDescription{Type: FieldEnum}.Validate()
	var de *DescriptorError
	if !errors.As(err, &de) || de.Path != "options" {
		t.Fatalf("expected options error, got %v", err)
	}
	if err := (FieldDescription{Type: FieldBoolean, Required: true}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	c := PluginConfiguration{
		ServiceName: "sample-processor",
		DisplayName: "Sample Processor",
		Type:        CategoryScript,
		Fields: map[string]FieldDescription{
			"code": {Type: FieldCode, Required: true, Properties: map[string]any{}},
			"limit": {Type: FieldNumber, Properties: map[string]any{
				"max":    int64(10),
				"step":   float64(2),
				"ratio":  0.5,
				"huge":   uint64(math.MaxUint64),
				"raw":    json.Number("42"),
				"nested": map[any]any{"a": uint16(3), "b": []string{"x"}},
			}},
		},
	}
	got := c.Normalize()
	want := map[string]any{
		"max":    10,
		"step":   2,
		"ratio":  0.5,
		"huge":   float64(math.MaxUint64),
		"raw":    42,
		"nested": map[string]any{"a": 3, "b": []any{"x"}},
	}
	if !reflect.DeepEqual(got.Fields["limit"].Properties, want) {
		t.Fatalf("properties = %#v; want %#v", got.Fields["limit"].Properties, want)
	}
	if got.Fields["code"].Properties != nil {
		t.Fatalf("empty properties should normalize to nil")
	}
	if _, ok := c.Fields["limit"].Properties["max"].(int64); !ok {
		t.Fatalf("Normalize modified the receiver")
	}
	if !reflect.DeepEqual(got.Normalize(), got) {
		t.Fatalf("Normalize is not idempotent")
	}
}
