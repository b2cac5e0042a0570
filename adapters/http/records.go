package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/instrument"
	"github.com/artpar/recordgate/core/record"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/pkg/jsonapi"
)

// CreateInstanceRequest is the body of POST /modules/{module}/records/{record}.
type CreateInstanceRequest struct {
	Args   []any          `json:"args"`
	Fields map[string]any `json:"fields"`
}

const defaultPerPage = 20

// ListModules returns every module materialized so far.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	mods := h.resolver.Registry().List()
	resources := make([]jsonapi.Resource, 0, len(mods))
	for _, m := range mods {
		resources = append(resources, jsonapi.NewResource(TypeModule, m.Name).
			Attr("source", m.Source).
			Attr("records", m.Names()).
			Link("/modules/"+m.Name).
			Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// GetModule resolves a module, loading it on first reference, and
// describes its record types.
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	mod, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "module"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, moduleResource(mod))
}

type recordDescription struct {
	Name   string             `json:"name"`
	Fields []record.FieldInfo `json:"fields"`
}

func moduleResource(mod *registry.Module) jsonapi.Resource {
	types := mod.Types()
	records := make([]recordDescription, 0, len(types))
	for _, t := range types {
		records = append(records, recordDescription{Name: t.Name(), Fields: t.Describe()})
	}
	return jsonapi.NewResource(TypeModule, mod.Name).
		Attr("source", mod.Source).
		Attr("records", records).
		Link("/modules/" + mod.Name).
		Build()
}

// CreateInstance constructs a record from positional args and named
// fields. Accepted instances are stored when an instance store is
// configured.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	moduleName := chi.URLParam(r, "module")
	recordName := chi.URLParam(r, "record")

	mod, err := h.resolver.Resolve(ctx, moduleName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	typ, ok := mod.Type(recordName)
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID("record", moduleName+"."+recordName))
		return
	}

	var req CreateInstanceRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		jsonapi.WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}
	for i, v := range req.Args {
		req.Args[i] = normalize(v)
	}
	for k, v := range req.Fields {
		req.Fields[k] = normalize(v)
	}

	var construct instrument.ConstructorFunc = typ.New
	logAccess := h.logAccess.Load()
	if logAccess {
		construct = instrument.Constructor(h.logger, typ)
	}

	inst, err := construct(req.Args, req.Fields)
	if h.metrics != nil {
		h.metrics.ObserveConstruction(moduleName, recordName, err)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	values := inst.Values()
	if logAccess {
		values = instrument.Observe(h.logger, inst).Values()
	}

	stored := sqlite.Instance{
		ID:        h.ids.New(),
		Module:    moduleName,
		Record:    recordName,
		Fields:    values,
		CreatedAt: h.clock.Now(),
	}

	location := ""
	if h.instances != nil {
		if err := h.instances.Create(ctx, stored); err != nil {
			h.writeError(w, r, err)
			return
		}
		location = "/instances/" + stored.ID
	}

	jsonapi.WriteCreated(w, instanceResource(stored, location != ""), location)
}

// ListInstances pages through the stored instances of one record type.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	if h.instances == nil {
		writeStoreUnavailable(w, "instance")
		return
	}
	ctx := r.Context()
	moduleName := chi.URLParam(r, "module")
	recordName := chi.URLParam(r, "record")

	page, perPage := jsonapi.ParsePaginationParams(r.URL.Query(), defaultPerPage)

	total, err := h.instances.Count(ctx, moduleName, recordName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := jsonapi.NewPagination(total, page, perPage, r.URL.Path)

	insts, err := h.instances.List(ctx, moduleName, recordName, p.Offset(), p.Limit())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(insts))
	for _, inst := range insts {
		resources = append(resources, instanceResource(inst, true))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, p)
}

// GetInstance returns one stored instance.
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	if h.instances == nil {
		writeStoreUnavailable(w, "instance")
		return
	}
	id := chi.URLParam(r, "id")
	inst, err := h.instances.Get(r.Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID("instance", id))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, instanceResource(inst, true))
}

func instanceResource(inst sqlite.Instance, linked bool) jsonapi.Resource {
	b := jsonapi.NewResource(TypeInstance, inst.ID).
		Attr("module", inst.Module).
		Attr("record", inst.Record).
		Attr("fields", inst.Fields).
		Attr("created_at", inst.CreatedAt)
	if linked {
		b.Link("/instances/" + inst.ID)
	}
	return b.Build()
}

// decodeJSON decodes a JSON body keeping numbers exact. An empty body
// decodes to the zero value.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// normalize turns json.Number into int64 when integral and float64
// otherwise, so integer rules see integers.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	default:
		return v
	}
}
