package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/schema"
	"github.com/artpar/recordgate/pkg/jsonapi"
)

// maxDocumentSize bounds an uploaded schema document.
const maxDocumentSize = 1 << 20

// ListDocuments lists stored schema documents without their bodies.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeStoreUnavailable(w, "document")
		return
	}
	docs, err := h.documents.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resources := make([]jsonapi.Resource, 0, len(docs))
	for _, d := range docs {
		resources = append(resources, documentResource(d, false))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// GetDocument returns one stored schema document including its body.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeStoreUnavailable(w, "document")
		return
	}
	module := chi.URLParam(r, "module")
	doc, err := h.documents.Get(r.Context(), module)
	if errors.Is(err, sqlite.ErrNotFound) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID("document", module))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, documentResource(doc, true))
}

// PutDocument stores the raw request body as the schema document of a
// module. The format comes from the format query parameter, or from the
// Content-Type when it names xml or yaml.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeStoreUnavailable(w, "document")
		return
	}
	module := chi.URLParam(r, "module")

	format, err := requestFormat(r)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail(err.Error()).
			Parameter("format").
			Build())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
	if err != nil {
		jsonapi.WriteBadRequest(w, "Failed to read body")
		return
	}
	if len(body) > maxDocumentSize {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "too_large", "Document Too Large").Build())
		return
	}

	if err := h.documents.Put(r.Context(), module, format, body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.DocumentsStored.Inc()
	}

	doc, err := h.documents.Get(r.Context(), module)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, documentResource(doc, false))
}

// DeleteDocument removes a stored document. Modules already loaded from
// it stay registered.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeStoreUnavailable(w, "document")
		return
	}
	module := chi.URLParam(r, "module")
	err := h.documents.Delete(r.Context(), module)
	if errors.Is(err, sqlite.ErrNotFound) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID("document", module))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteNoContent(w)
}

func requestFormat(r *http.Request) (schema.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return schema.ParseFormat(f)
	}
	switch ct := r.Header.Get("Content-Type"); {
	case containsAny(ct, "yaml", "yml"):
		return schema.FormatYAML, nil
	case containsAny(ct, "xml"):
		return schema.FormatXML, nil
	}
	return "", errors.New("format query parameter is required (xml or yaml)")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func documentResource(d sqlite.Document, withBody bool) jsonapi.Resource {
	b := jsonapi.NewResource(TypeDocument, d.Module).
		Attr("format", string(d.Format)).
		Attr("created_at", d.CreatedAt).
		Attr("updated_at", d.UpdatedAt).
		Link("/documents/" + d.Module)
	if withBody {
		b.Attr("body", string(d.Body))
	}
	return b.Build()
}
