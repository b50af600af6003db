package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/practiceops/servicecatalog/internal/common/httpx"
)

type responseHandlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

func (h *handlers) routes() []responseHandlerParam {
	return []responseHandlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/",
			Handler: h.listServices,
		},
		{
			Method:  http.MethodPost,
			Path:    "/",
			Handler: h.createService,
		},
		{
			Method:  http.MethodGet,
			Path:    "/stats",
			Handler: h.getStats,
		},
		{
			Method:  http.MethodGet,
			Path:    "/export",
			Handler: h.exportServices,
		},
		{
			Method:  http.MethodPost,
			Path:    "/bulk",
			Handler: h.bulkAction,
		},
		{
			Method:  http.MethodGet,
			Path:    "/{id}",
			Handler: h.getService,
		},
		{
			Method:  http.MethodPatch,
			Path:    "/{id}",
			Handler: h.updateService,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/{id}",
			Handler: h.deleteService,
		},
		{
			Method:  http.MethodPost,
			Path:    "/{id}/clone",
			Handler: h.cloneService,
		},
	}
}

// Router registers the catalog endpoints on r. Mount it under /services.
func Router(svc *CatalogService) func(r chi.Router) {
	h := &handlers{svc: svc}
	return func(r chi.Router) {
		for _, route := range h.routes() {
			r.Method(route.Method, route.Path, httpx.WrapHttpRsp(route.Handler))
		}
	}
}
