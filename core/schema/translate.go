package schema

import (
	"fmt"
)

// Reserved field attributes. Everything else is a rule parameter.
const (
	AttrName = "name"
	AttrType = "type"
)

// KindSet reports which rule kinds exist.
type KindSet interface {
	Has(kind string) bool
}

// Translate converts a document into record definitions. It is pure:
// no I/O, no registration.
func Translate(doc Document, kinds KindSet) ([]Definition, error) {
	defs := make([]Definition, 0, len(doc.Records))
	records := make(map[string]bool, len(doc.Records))

	for i, rec := range doc.Records {
		if rec.Name == "" {
			return nil, &SchemaError{Source: doc.Source, Msg: fmt.Sprintf("record %d: missing name attribute", i+1)}
		}
		if !isValidIdentifier(rec.Name) {
			return nil, &SchemaError{Source: doc.Source, Record: rec.Name, Msg: "name is not a valid identifier"}
		}
		if records[rec.Name] {
			return nil, &SchemaError{Source: doc.Source, Record: rec.Name, Msg: "duplicate record"}
		}
		records[rec.Name] = true

		def, err := translateRecord(doc.Source, rec, kinds)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func translateRecord(source string, rec RecordNode, kinds KindSet) (Definition, error) {
	def := Definition{Name: rec.Name, Fields: make([]FieldDefinition, 0, len(rec.Fields))}
	seen := make(map[string]bool, len(rec.Fields))

	for i, f := range rec.Fields {
		name, err := stringAttr(f, AttrName)
		if err != nil {
			return Definition{}, &SchemaError{Source: source, Record: rec.Name, Msg: fmt.Sprintf("field %d: %v", i+1, err)}
		}
		if !isValidIdentifier(name) {
			return Definition{}, &SchemaError{Source: source, Record: rec.Name, Field: name, Msg: "name is not a valid identifier"}
		}
		if seen[name] {
			return Definition{}, &SchemaError{Source: source, Record: rec.Name, Field: name, Msg: "duplicate field"}
		}
		seen[name] = true

		kind, err := stringAttr(f, AttrType)
		if err != nil {
			return Definition{}, &SchemaError{Source: source, Record: rec.Name, Field: name, Msg: err.Error()}
		}
		if !kinds.Has(kind) {
			return Definition{}, &SchemaError{Source: source, Record: rec.Name, Field: name, Msg: fmt.Sprintf("unknown rule kind %q", kind)}
		}

		params := make(map[string]any)
		for _, a := range f.Attrs {
			if a.Name == AttrName || a.Name == AttrType {
				continue
			}
			if _, dup := params[a.Name]; dup {
				return Definition{}, &SchemaError{Source: source, Record: rec.Name, Field: name, Msg: fmt.Sprintf("duplicate parameter %q", a.Name)}
			}
			params[a.Name] = a.Value
		}

		def.Fields = append(def.Fields, FieldDefinition{Name: name, Kind: kind, Params: params})
	}
	return def, nil
}

func stringAttr(f FieldNode, name string) (string, error) {
	v, ok := f.Attr(name)
	if !ok {
		return "", fmt.Errorf("missing %s attribute", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s attribute must be a non-empty string", name)
	}
	return s, nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
