package spi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldType represents the kind of a user-configurable field.
type FieldType string

const (
	FieldString  FieldType = "STRING"
	FieldNumber  FieldType = "NUMBER"
	FieldBoolean FieldType = "BOOLEAN"
	FieldEnum    FieldType = "ENUM"
	FieldCode    FieldType = "CODE"
)

// FieldTypes returns every valid field type in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{FieldString, FieldNumber, FieldBoolean, FieldEnum, FieldCode}
}

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes() {
		if t == ft {
			return true
		}
	}
	return false
}

// Processor categories used by the dataflow service to dispatch plugins.
const (
	CategoryIngest   = "INGEST"
	CategoryScript   = "SCRIPT"
	CategoryExternal = "EXTERNAL"
	CategoryCollect  = "COLLECT"
	CategoryPlugin   = "PLUGIN"
)

// FieldDescription describes a single user-configurable input of a plugin.
type FieldDescription struct {
	Type       FieldType      `json:"type" yaml:"type" msgpack:"type"`
	Required   bool           `json:"required" yaml:"required" msgpack:"required"`
	HelperText string         `json:"helperText,omitempty" yaml:"helperText,omitempty" msgpack:"helperText,omitempty"`
	Options    []string       `json:"options,omitempty" yaml:"options,omitempty" msgpack:"options,omitempty"`         // only for ENUM
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" msgpack:"properties,omitempty"` // plugin-specific extensions
}

// PluginConfiguration is the descriptor a plugin hands to the registry: its
// registration identity and the fields rendered in its configuration form.
type PluginConfiguration struct {
	ServiceName string                      `json:"serviceName" yaml:"serviceName" msgpack:"serviceName"` // service discovery name
	DisplayName string                      `json:"displayName" yaml:"displayName" msgpack:"displayName"`
	Type        string                      `json:"type" yaml:"type" msgpack:"type"` // processor category, e.g. SCRIPT
	Fields      map[string]FieldDescription `json:"fields" yaml:"fields" msgpack:"fields"`
}

// Field returns the description of the named field. The boolean is false when
// the plugin does not declare it.
func (c PluginConfiguration) Field(name string) (FieldDescription, bool) {
	f, ok := c.Fields[name]
	if !ok {
		return FieldDescription{}, false
	}
	return f.Clone(), true
}

// FieldNames returns the declared field names in sorted order.
func (c PluginConfiguration) FieldNames() []string {
	out := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of c.
func (c PluginConfiguration) Clone() PluginConfiguration {
	out := c
	if c.Fields != nil {
		out.Fields = make(map[string]FieldDescription, len(c.Fields))
		for k, f := range c.Fields {
			out.Fields[k] = f.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of f. Nested values in Properties are copied
// when they are maps or slices produced by a decoder.
func (f FieldDescription) Clone() FieldDescription {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	if f.Properties != nil {
		out.Properties = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			out.Properties[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Normalize returns a deep copy of c in the form every decoder produces: empty
// Options and Properties become nil, integral numbers in Properties become
// int, other numbers float64, and nested maps and sequences become
// map[string]any and []any. Decoding an encoded descriptor yields its
// normalized form in every format.
func (c PluginConfiguration) Normalize() PluginConfiguration {
	out := c
	if c.Fields != nil {
		out.Fields = make(map[string]FieldDescription, len(c.Fields))
		for k, f := range c.Fields {
			out.Fields[k] = f.Normalize()
		}
	}
	return out
}

// Normalize returns a deep copy of f in normalized form.
func (f FieldDescription) Normalize() FieldDescription {
	out := f
	out.Options = nil
	if len(f.Options) > 0 {
		out.Options = append([]string(nil), f.Options...)
	}
	out.Properties = nil
	if len(f.Properties) > 0 {
		out.Properties = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			out.Properties[k] = normalizeValue(v)
		}
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = normalizeValue(vv)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = normalizeValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = normalizeValue(vv)
		}
		return s
	case []string:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = vv
		}
		return s
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return normalizeFloat(f)
	case int:
		return t
	case int8:
		return int(t)
	case int16:
		return int(t)
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint:
		return normalizeUint(uint64(t))
	case uint8:
		return int(t)
	case uint16:
		return int(t)
	case uint32:
		return int(t)
	case uint64:
		return normalizeUint(t)
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	default:
		return v
	}
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int(u)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int(f)
	}
	return f
}

// ErrInvalidDescriptor is wrapped by every descriptor validation failure.
var ErrInvalidDescriptor = errors.New("invalid plugin descriptor")

// DescriptorError reports a structural problem with a descriptor. Path names
// the offending key using dotted notation (e.g. "fields.code.options").
type DescriptorError struct {
	Path   string
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidDescriptor, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDescriptor, e.Path, e.Reason)
}

func (e *DescriptorError) Unwrap() error { return ErrInvalidDescriptor }

func invalid(path, format string, args ...any) error {
	return &DescriptorError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of the descriptor and returns the
// first violation found. Fields are checked in sorted name order so the
// reported error is stable.
func (c PluginConfiguration) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return invalid("serviceName", "must not be empty")
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return invalid("displayName", "must not be empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return invalid("type", "must not be empty")
	}
	if c.Fields == nil {
		return invalid("fields", "is required")
	}
	for _, name := range c.FieldNames() {
		if strings.TrimSpace(name) == "" {
			return invalid("fields", "field name must not be empty")
		}
		if err := c.Fields[name].validate("fields." + name); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single field description in isolation.
func (f FieldDescription) Validate() error { return f.validate("") }

func (f FieldDescription) validate(prefix string) error {
	path := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}
	if !f.Type.Valid() {
		return invalid(path("type"), "unknown field type %q", string(f.Type))
	}
	if f.Type == FieldEnum {
		if len(f.Options) == 0 {
			return invalid(path("options"), "required for ENUM fields")
		}
		for i, o := range f.Options {
			if o == "" {
				return invalid(fmt.Sprintf("%s[%d]", path("options"), i), "must not be empty")
			}
		}
		return nil
	}
	if f.Options != nil {
		return invalid(path("options"), "only allowed for ENUM fields, got %s", f.Type)
	}
	return nil
}
