package resolver

import (
	"github.com/artpar/recordgate/core/record"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/rule"
	"github.com/artpar/recordgate/core/schema"
)

// Load parses, translates and builds every record type in src. Any
// failure returns an error and no module.
func Load(src Source, catalog *rule.Catalog) (*registry.Module, error) {
	doc, err := schema.ParseSource(src.Origin, src.Format, src.Data)
	if err != nil {
		return nil, err
	}

	defs, err := schema.Translate(doc, catalog)
	if err != nil {
		return nil, err
	}

	types := make([]*record.Type, 0, len(defs))
	for _, def := range defs {
		specs := make([]record.FieldSpec, len(def.Fields))
		for i, f := range def.Fields {
			specs[i] = record.FieldSpec{Name: f.Name, Kind: f.Kind, Params: rule.Params(f.Params)}
		}

		typ, err := record.Define(catalog, def.Name, specs...)
		if err != nil {
			return nil, &schema.SchemaError{Source: src.Origin, Err: err}
		}
		types = append(types, typ)
	}

	return registry.NewModule(src.Module, src.Origin, types...)
}
