package schema

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a schema document encoding.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// Extensions lists the file extensions searched for schema documents, in
// priority order.
var Extensions = []string{".struct", ".xml", ".yaml", ".yml"}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".struct", ".xml":
		return FormatXML, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatXML, FormatYAML:
		return f, nil
	case "struct":
		return FormatXML, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown schema format %q", s)
	}
}

// Document is a parsed schema document.
type Document struct {
	// Source names where the document came from, for error messages.
	Source  string
	Records []RecordNode
}

// RecordNode is one record description.
type RecordNode struct {
	Name   string
	Fields []FieldNode
}

// FieldNode is one field description. Attrs keeps document order.
type FieldNode struct {
	Attrs []Attr
}

// Attr is a single field attribute.
type Attr struct {
	Name  string
	Value any
}

// Attr returns the value of the named attribute.
func (f FieldNode) Attr(name string) (any, bool) {
	for _, a := range f.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Definition is a record type definition produced by Translate.
type Definition struct {
	Name   string
	Fields []FieldDefinition
}

// FieldDefinition declares one field by rule kind and parameters.
type FieldDefinition struct {
	Name   string
	Kind   string
	Params map[string]any
}

// FieldNames returns the field names in declaration order.
func (d Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}
