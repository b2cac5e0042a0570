package formatter

import (
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/artpar/recordgate/core/record"
)

// YAMLFormatter formats output as YAML. Fields keep declaration order.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

// FormatList formats instances as a YAML sequence.
func (f *YAMLFormatter) FormatList(w io.Writer, typ *record.Type, rows []map[string]any, opts FormatOptions) error {
	cols := columns(typ, opts.Columns)
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range rows {
		node, err := orderedNode(row, cols)
		if err != nil {
			return err
		}
		seq.Content = append(seq.Content, node)
	}

	doc := mappingNode(
		scalar("record"), scalar(typ.Name()),
		scalar("count"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(len(rows))},
		scalar("data"), seq,
	)
	return f.encode(w, doc)
}

// FormatRecord formats a single instance as YAML.
func (f *YAMLFormatter) FormatRecord(w io.Writer, typ *record.Type, values map[string]any, opts FormatOptions) error {
	data, err := orderedNode(values, columns(typ, opts.Columns))
	if err != nil {
		return err
	}
	return f.encode(w, mappingNode(scalar("record"), scalar(typ.Name()), scalar("data"), data))
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]any{"error": err.Error()})
}

// encode writes YAML to the writer.
func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

// orderedNode builds a mapping with keys in cols order. Missing fields
// are left out.
func orderedNode(values map[string]any, cols []string) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range cols {
		v, ok := values[c]
		if !ok {
			continue
		}
		var vn yaml.Node
		if err := vn.Encode(v); err != nil {
			return nil, err
		}
		m.Content = append(m.Content, scalar(c), &vn)
	}
	return m, nil
}

func mappingNode(kv ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Content: kv}
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
