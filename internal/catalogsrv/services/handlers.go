package services

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/common/httpx"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

type handlers struct {
	svc *CatalogService
}

func (h *handlers) listServices(r *http.Request) (*httpx.Response, error) {
	f, err := filtersFromQuery(r.URL.Query())
	if err != nil {
		return nil, err
	}
	res, err := h.svc.List(r.Context(), catcommon.GetTenantID(r.Context()), f)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: res}, nil
}

func (h *handlers) createService(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var form CreateForm
	if err := httpx.GetRequestData(r, &form); err != nil {
		return nil, err
	}
	e, err := h.svc.Create(ctx, catcommon.GetTenantID(ctx), form, catcommon.GetActor(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/services/" + e.ID.String(),
		Response:   e,
	}, nil
}

func (h *handlers) getService(r *http.Request) (*httpx.Response, error) {
	id, err := serviceID(r)
	if err != nil {
		return nil, err
	}
	e, err := h.svc.GetByID(r.Context(), catcommon.GetTenantID(r.Context()), id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, httpx.ErrNotFound(ErrNotFound.Error())
	}

	tag := etag(e)
	headers := map[string]string{"ETag": tag}
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, tag) {
		return &httpx.Response{StatusCode: http.StatusNotModified, Headers: headers}, nil
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: e, Headers: headers}, nil
}

func (h *handlers) updateService(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := serviceID(r)
	if err != nil {
		return nil, err
	}
	var p Patch
	if err := httpx.GetRequestData(r, &p); err != nil {
		return nil, err
	}
	e, err := h.svc.Update(ctx, catcommon.GetTenantID(ctx), id, p, catcommon.GetActor(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: e}, nil
}

func (h *handlers) deleteService(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := serviceID(r)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Delete(ctx, catcommon.GetTenantID(ctx), id, catcommon.GetActor(ctx)); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

type cloneRequest struct {
	Name string `json:"name"`
}

func (h *handlers) cloneService(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := serviceID(r)
	if err != nil {
		return nil, err
	}
	var req cloneRequest
	if r.ContentLength != 0 {
		if err := httpx.GetRequestData(r, &req); err != nil {
			return nil, err
		}
	}
	e, err := h.svc.Clone(ctx, catcommon.GetTenantID(ctx), req.Name, id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/services/" + e.ID.String(),
		Response:   e,
	}, nil
}

func (h *handlers) bulkAction(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req BulkRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	res, err := h.svc.BulkAction(ctx, catcommon.GetTenantID(ctx), req, catcommon.GetActor(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: res}, nil
}

func (h *handlers) getStats(r *http.Request) (*httpx.Response, error) {
	st, err := h.svc.GetStats(r.Context(), catcommon.GetTenantID(r.Context()))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: st}, nil
}

func (h *handlers) exportServices(r *http.Request) (*httpx.Response, error) {
	q := r.URL.Query()
	opts := ExportOptions{Format: q.Get("format")}
	if v := q.Get("includeInactive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("invalid includeInactive")
		}
		opts.IncludeInactive = b
	}
	body, err := h.svc.Export(r.Context(), catcommon.GetTenantID(r.Context()), opts)
	if err != nil {
		return nil, err
	}

	rsp := &httpx.Response{
		StatusCode:  http.StatusOK,
		Response:    body,
		ContentType: "text/csv",
	}
	format := ExportCSV
	if strings.EqualFold(opts.Format, ExportJSON) {
		format = ExportJSON
		rsp.Response = json.RawMessage(body)
		rsp.ContentType = "application/json"
	}
	filename := "services-" + h.svc.now().Format("2006-01-02") + "." + format
	rsp.Headers = map[string]string{"Content-Disposition": `attachment; filename="` + filename + `"`}
	return rsp, nil
}

func serviceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid service id")
	}
	return id, nil
}

// filtersFromQuery reads listing parameters. Unknown enum values are left
// for Filters.normalize; malformed numbers are rejected.
func filtersFromQuery(q url.Values) (Filters, error) {
	f := Filters{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Featured:  q.Get("featured"),
		Category:  q.Get("category"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filters{}, httpx.ErrInvalidRequest("invalid " + name)
		}
		*dst = n
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Filters{}, httpx.ErrInvalidRequest("invalid " + name)
		}
		*dst = &d
	}
	return f, nil
}

func etag(e *Entry) string {
	sum := sha1.Sum([]byte(e.ID.String() + e.UpdatedAt.UTC().Format(time.RFC3339Nano)))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}
