package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/cache"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/memstore"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/services"
)

type testServer struct {
	srv      *CatalogServer
	recorder *notify.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	config.TestInit()
	rec := notify.NewRecorder()
	store := memstore.New()
	t.Cleanup(func() { store.Close() })
	catalog := services.New(services.Options{
		Store:    store,
		Cache:    cache.NewMemory(),
		Notifier: rec,
	})
	srv, err := CreateNewServer(catalog)
	require.NoError(t, err)
	srv.MountHandlers()
	return &testServer{srv: srv, recorder: rec}
}

func (ts *testServer) do(t *testing.T, method, path, tenant, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tenant != "" {
		req.Header.Set(HeaderTenantID, tenant)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestCreateNewServerRequiresCatalog(t *testing.T) {
	_, err := CreateNewServer(nil)
	assert.Error(t, err)
}

func TestGetVersion(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/version", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rsp := decode[GetVersionRsp](t, rr)
	assert.Equal(t, "Service Catalog Server: "+catcommon.ServerVersion, rsp.ServerVersion)
	assert.Equal(t, catcommon.ApiVersion, rsp.ApiVersion)
}

func TestGetReadiness(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"status": "ready"}, decode[map[string]string](t, rr))
}

func TestServiceLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/services", "clinic-1",
		`{"name": "Deep Tissue Massage", "description": "Sixty minutes of focused work", "price": 90, "duration": 60}`,
		HeaderActorID, "alice")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[services.Entry](t, rr)
	assert.Equal(t, "deep-tissue-massage", created.Slug)
	assert.Equal(t, "/services/"+created.ID.String(), rr.Header().Get("Location"))
	require.NotNil(t, created.TenantID)
	assert.Equal(t, "clinic-1", *created.TenantID)

	path := "/services/" + created.ID.String()
	rr = ts.do(t, http.MethodGet, path, "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	tag := rr.Header().Get("ETag")
	require.NotEmpty(t, tag)

	rr = ts.do(t, http.MethodGet, path, "clinic-1", "", "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = ts.do(t, http.MethodGet, path, "clinic-2", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPatch, path, "clinic-1", `{"price": 120, "featured": true}`, HeaderActorID, "bob")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[services.Entry](t, rr)
	require.NotNil(t, updated.Price)
	assert.Equal(t, 120.0, *updated.Price)
	assert.True(t, updated.Featured)

	rr = ts.do(t, http.MethodGet, path, "clinic-1", "", "If-None-Match", tag)
	assert.Equal(t, http.StatusOK, rr.Code, "stale etag must not match")

	rr = ts.do(t, http.MethodGet, "/services?status=active", "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[services.ListResult](t, rr)
	assert.Equal(t, 1, page.Total)

	rr = ts.do(t, http.MethodDelete, path, "clinic-1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/services?status=active", "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[services.ListResult](t, rr).Total)

	assert.Equal(t, []string{notify.KindServiceCreated, notify.KindServiceUpdated, notify.KindServiceDeleted}, ts.recorder.Kinds())
	assert.Equal(t, "alice", ts.recorder.Notifications()[0].Actor)
	assert.Equal(t, "bob", ts.recorder.Notifications()[1].Actor)
	assert.Equal(t, catcommon.SystemActor, ts.recorder.Notifications()[2].Actor)
}

func TestCreateWithoutTenant(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/services", "", `{"name": "Facial", "description": "Cleansing"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tenant context is required")
}

func TestSingleTenantModeDefaultsTenant(t *testing.T) {
	ts := newTestServer(t)
	config.Config().SingleTenantMode = true
	config.Config().DefaultTenantID = "main"
	t.Cleanup(func() {
		config.Config().SingleTenantMode = false
		config.Config().DefaultTenantID = ""
	})

	rr := ts.do(t, http.MethodPost, "/services", "", `{"name": "Facial", "description": "Cleansing"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	e := decode[services.Entry](t, rr)
	require.NotNil(t, e.TenantID)
	assert.Equal(t, "main", *e.TenantID)
}

func TestInvalidTenantHeader(t *testing.T) {
	ts := newTestServer(t)
	for _, tenant := range []string{"global", "has space", "a*b"} {
		rr := ts.do(t, http.MethodGet, "/services", tenant, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, tenant)
	}
}

func TestIncompatibleApiVersion(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/services", "clinic-1", "", HeaderApiVersion, "9.0.0")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/services", "clinic-1", "", HeaderApiVersion, catcommon.ApiVersion)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestInvalidQueryAndID(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/services?limit=ten", "clinic-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/services/not-a-uuid", "clinic-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCloneBulkStatsAndExport(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/services", "clinic-1", `{"name": "Hot Stone, Deluxe", "description": "Warm stones", "price": "75.50", "duration": 90, "category": "Massage"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	src := decode[services.Entry](t, rr)

	rr = ts.do(t, http.MethodPost, "/services/"+src.ID.String()+"/clone", "clinic-1", `{"name": ""}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	clone := decode[services.Entry](t, rr)
	assert.Equal(t, "Hot Stone, Deluxe (copy)", clone.Name)
	assert.Equal(t, catcommon.StatusDraft, clone.Status)

	rr = ts.do(t, http.MethodPost, "/services/bulk", "clinic-1",
		`{"action": "activate", "serviceIds": ["`+clone.ID.String()+`"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[services.BulkResult](t, rr)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Empty(t, res.Errors)

	rr = ts.do(t, http.MethodGet, "/services/stats", "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[services.Stats](t, rr)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 1, st.CategoryCount)

	rr = ts.do(t, http.MethodGet, "/services/export?format=csv", "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".csv")
	lines := strings.Split(rr.Body.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Slug,Category,Price,Duration,Featured,Active,Status,CreatedAt,UpdatedAt", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"Hot Stone, Deluxe",hot-stone-deluxe,Massage,75.5,90,No,Yes,ACTIVE,`), lines[1])

	rr = ts.do(t, http.MethodGet, "/services/export?format=json", "clinic-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Len(t, decode[[]services.Entry](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/services/export?includeInactive=maybe", "clinic-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodOptions, "/services", "", "",
		"Origin", "https://admin.example.com",
		"Access-Control-Request-Method", http.MethodPatch)
	assert.Equal(t, "https://admin.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
