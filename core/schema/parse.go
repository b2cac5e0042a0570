package schema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a schema document from a file, choosing the format by
// extension.
func ParseFile(path string) (Document, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return Document{}, fmt.Errorf("parse %s: unsupported extension", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return ParseSource(path, format, data)
}

// ParseDir parses every schema document directly inside dir, in name order.
func ParseDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(entry.Name()); !ok {
			continue
		}
		doc, err := ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseSource is like Parse but records source on the document and on
// any SchemaError.
func ParseSource(source string, format Format, data []byte) (Document, error) {
	doc, err := Parse(format, data)
	if err != nil {
		return Document{}, withSource(err, source)
	}
	doc.Source = source
	return doc, nil
}

// Parse parses a document in the given format.
func Parse(format Format, data []byte) (Document, error) {
	switch format {
	case FormatXML:
		return ParseXML(bytes.NewReader(data))
	case FormatYAML:
		return ParseYAML(data)
	default:
		return Document{}, &SchemaError{Msg: fmt.Sprintf("unknown format %q", format)}
	}
}

// xmlNode is a generic element: any name, any attributes, any children.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ParseXML parses an XML schema document.
func ParseXML(r io.Reader) (Document, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, &SchemaError{Msg: "empty document"}
		}
		return Document{}, &SchemaError{Msg: "parse xml", Err: err}
	}

	var doc Document
	for _, child := range root.Children {
		switch child.XMLName.Local {
		case "record", "struct":
		default:
			continue
		}

		name, _ := child.attr("name")
		rec := RecordNode{Name: name}
		for _, f := range child.Children {
			if f.XMLName.Local != "field" {
				continue
			}
			node := FieldNode{Attrs: make([]Attr, 0, len(f.Attrs))}
			for _, a := range f.Attrs {
				node.Attrs = append(node.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			rec.Fields = append(rec.Fields, node)
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

type yamlDocument struct {
	Records []yamlRecord `yaml:"records"`
}

type yamlRecord struct {
	Name   string      `yaml:"name"`
	Fields []yaml.Node `yaml:"fields"`
}

// ParseYAML parses a YAML schema document. Field attributes keep their
// document order.
func ParseYAML(data []byte) (Document, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, &SchemaError{Msg: "parse yaml", Err: err}
	}

	var doc Document
	for _, r := range raw.Records {
		rec := RecordNode{Name: r.Name}
		for i := range r.Fields {
			node, err := yamlField(&r.Fields[i])
			if err != nil {
				return Document{}, &SchemaError{Record: r.Name, Msg: err.Error()}
			}
			rec.Fields = append(rec.Fields, node)
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

func yamlField(n *yaml.Node) (FieldNode, error) {
	if n.Kind != yaml.MappingNode {
		return FieldNode{}, fmt.Errorf("line %d: field must be a mapping", n.Line)
	}

	node := FieldNode{Attrs: make([]Attr, 0, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		var v any
		if err := val.Decode(&v); err != nil {
			return FieldNode{}, fmt.Errorf("line %d: attribute %q: %w", val.Line, key.Value, err)
		}
		node.Attrs = append(node.Attrs, Attr{Name: key.Value, Value: v})
	}
	return node, nil
}

func withSource(err error, source string) error {
	var se *SchemaError
	if errors.As(err, &se) && se.Source == "" {
		cp := *se
		cp.Source = source
		return &cp
	}
	return err
}
