package formatter

import (
	"encoding/json"
	"io"

	"github.com/artpar/recordgate/core/record"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatList formats instances as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, typ *record.Type, rows []map[string]any, opts FormatOptions) error {
	cols := columns(typ, opts.Columns)
	data := make([]map[string]any, len(rows))
	for i, row := range rows {
		data[i] = project(row, cols)
	}

	output := map[string]any{
		"record": typ.Name(),
		"count":  len(data),
		"data":   data,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatRecord formats a single instance as JSON.
func (f *JSONFormatter) FormatRecord(w io.Writer, typ *record.Type, values map[string]any, opts FormatOptions) error {
	output := map[string]any{
		"record": typ.Name(),
		"data":   project(values, columns(typ, opts.Columns)),
	}
	return f.encode(w, output, opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
