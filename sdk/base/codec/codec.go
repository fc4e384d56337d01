// Package codec serializes plugin descriptors to JSON, YAML and msgpack and
// decodes untrusted documents back into validated descriptors.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/opendmp/python-script-processor/sdk/api/spi"
	"github.com/opendmp/python-script-processor/sdk/base/schema"
)

// Format identifies a serialization format.
type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	Msgpack Format = "msgpack"
)

// ErrUnknownFormat is returned for unsupported format names or file extensions.
var ErrUnknownFormat = errors.New("unknown descriptor format")

// Formats returns the supported formats.
func Formats() []Format { return []Format{JSON, YAML, Msgpack} }

// ParseFormat converts a user-supplied name into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "msgpack", "mp":
		return Msgpack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks a format from the file extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// ContentType returns the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case Msgpack:
		return "application/msgpack"
	default:
		return "application/json"
	}
}

// Encode serializes the descriptor. JSON output is indented for readability.
func Encode(f Format, c spi.PluginConfiguration) ([]byte, error) {
	switch f {
	case JSON:
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Msgpack:
		return msgpack.Marshal(c)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Decode parses data as a descriptor document. The document is checked
// against the descriptor schema, decoded from the source bytes into the typed
// value, normalized and validated.
func Decode(f Format, data []byte) (spi.PluginConfiguration, error) {
	var c spi.PluginConfiguration
	doc, err := decodeGeneric(f, data)
	if err != nil {
		return c, err
	}
	if err := schema.ValidateDocument(doc); err != nil {
		return c, err
	}
	if err := decodeTyped(f, data, &c); err != nil {
		return spi.PluginConfiguration{}, fmt.Errorf("decode descriptor: %w", err)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return spi.PluginConfiguration{}, err
	}
	return c, nil
}

// decodeTyped decodes straight from the source format so property values keep
// their integer or float kind. JSON numbers are kept as json.Number until
// normalization.
func decodeTyped(f Format, data []byte, c *spi.PluginConfiguration) error {
	switch f {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		return dec.Decode(c)
	case YAML:
		return yaml.Unmarshal(data, c)
	case Msgpack:
		return msgpack.Unmarshal(data, c)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// decodeGeneric decodes data into the JSON-shaped value the schema validator
// expects: string map keys and float64 numbers.
func decodeGeneric(f Format, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &spi.DescriptorError{Reason: "empty document"}
	}
	var raw any
	switch f {
	case JSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return raw, nil
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case Msgpack:
		if err := msgpack.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
	b, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", f, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("normalize %s: %w", f, err)
	}
	return doc, nil
}

// stringKeys converts map[any]any nodes, which YAML and msgpack may produce,
// into map[string]any so they can be marshaled as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = stringKeys(vv)
		}
		return m
	case map[string]any:
		for k, vv := range t {
			t[k] = stringKeys(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = stringKeys(vv)
		}
		return t
	default:
		return v
	}
}

// WriteFile encodes c in the format implied by path and writes it there.
func WriteFile(path string, c spi.PluginConfiguration) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	b, err := Encode(f, c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadFile loads and validates a descriptor from path.
func ReadFile(path string) (spi.PluginConfiguration, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return spi.PluginConfiguration{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return spi.PluginConfiguration{}, err
	}
	c, err := Decode(f, b)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
