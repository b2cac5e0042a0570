package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/binder"
	"github.com/artpar/recordgate/core/resolver"
	"github.com/artpar/recordgate/core/rule"
	"github.com/artpar/recordgate/core/schema"
	"github.com/artpar/recordgate/pkg/jsonapi"
)

// errorFor maps a domain error to a JSON:API error object.
func errorFor(err error) jsonapi.Error {
	var v *rule.Violation
	switch {
	case errors.As(err, &v):
		b := jsonapi.NewError(http.StatusUnprocessableEntity, "rule_violation", "Rule Violation").
			Detail(v.Error()).
			Meta("check", string(v.Check)).
			Meta("kind", v.Kind)
		if v.Field != "" {
			b.Pointer("/fields/" + v.Field)
		}
		return b.Build()
	case errors.Is(err, binder.ErrArity):
		return jsonapi.NewError(http.StatusBadRequest, "arity_mismatch", "Arity Mismatch").Detail(err.Error()).Build()
	case errors.Is(err, binder.ErrUnknownField):
		var uf *binder.UnknownFieldError
		b := jsonapi.NewError(http.StatusBadRequest, "unknown_field", "Unknown Field").Detail(err.Error())
		if errors.As(err, &uf) {
			b.Pointer("/fields/" + uf.Name)
		}
		return b.Build()
	case errors.Is(err, resolver.ErrInvalidName):
		return jsonapi.NewError(http.StatusBadRequest, "invalid_module_name", "Invalid Module Name").Detail(err.Error()).Build()
	case errors.Is(err, resolver.ErrNotFound):
		return jsonapi.NewError(http.StatusNotFound, "module_not_found", "Module Not Found").Detail(err.Error()).Build()
	case errors.Is(err, schema.ErrSchema):
		return jsonapi.ErrUnprocessable("schema_error", "Schema Error", err.Error())
	case errors.Is(err, sqlite.ErrNotFound):
		return jsonapi.NewError(http.StatusNotFound, "not_found", "Not Found").Build()
	default:
		return jsonapi.ErrInternal("")
	}
}

// writeError writes err as a JSON:API error document. Server errors are
// logged with the request id; their detail is not sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errorFor(err)
	if e.StatusCode() >= 500 {
		reqID := middleware.GetReqID(r.Context())
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", reqID).
			Msg("request failed")
		jsonapi.WriteInternalError(w, "request "+reqID+" failed")
		return
	}
	jsonapi.WriteError(w, e)
}

// notFound answers unknown routes with a JSON:API error.
func notFound(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteNotFound(w, "route")
}

func writeStoreUnavailable(w http.ResponseWriter, what string) {
	jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable(what+" storage is not configured"))
}
