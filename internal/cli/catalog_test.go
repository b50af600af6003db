package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/memstore"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/server"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/services"
	"github.com/practiceops/servicecatalog/internal/common/httpclient"
)

const testTenant = catcommon.TenantId("clinic-1")

func startCatalogServer(t *testing.T) (*httptest.Server, *services.CatalogService) {
	t.Helper()
	config.TestInit()
	store := memstore.New()
	t.Cleanup(func() { store.Close() })
	catalog := services.New(services.Options{Store: store})
	s, err := server.CreateNewServer(catalog)
	require.NoError(t, err)
	s.MountHandlers()
	ts := httptest.NewServer(s.Router)
	t.Cleanup(ts.Close)

	clientConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { clientConfigFile = "" })
	return ts, catalog
}

func TestRemoteExport(t *testing.T) {
	ts, catalog := startCatalogServer(t)
	ctx := context.Background()
	for _, name := range []string{"Reiki", "Acupuncture"} {
		_, err := catalog.Create(ctx, testTenant, services.CreateForm{Name: name, Description: "A bookable service"}, "test")
		require.NoError(t, err)
	}
	_, err := catalog.Create(ctx, testTenant, services.CreateForm{Name: "Archived", Description: "Retired", Status: "inactive"}, "test")
	require.NoError(t, err)

	flags := catalogFlags{remote: true, server: ts.URL, tenant: string(testTenant)}
	src, err := flags.remoteSource()
	require.NoError(t, err)

	opts := services.ExportOptions{Format: services.ExportCSV}
	want, err := catalog.Export(ctx, testTenant, opts)
	require.NoError(t, err)
	got, err := src.export(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = src.export(ctx, services.ExportOptions{Format: services.ExportJSON, IncludeInactive: true})
	require.NoError(t, err)
	var entries []services.Entry
	require.NoError(t, json.Unmarshal([]byte(got), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "Acupuncture", entries[0].Name)
	assert.Equal(t, "Archived", entries[1].Name)
}

func TestRemoteStats(t *testing.T) {
	ts, catalog := startCatalogServer(t)
	ctx := context.Background()
	_, err := catalog.Create(ctx, testTenant, services.CreateForm{Name: "Reiki", Description: "Energy work"}, "test")
	require.NoError(t, err)

	flags := catalogFlags{server: ts.URL, tenant: string(testTenant)}
	src, err := flags.remoteSource()
	require.NoError(t, err)
	st, err := src.stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Active)

	// other tenants are not visible
	src.tenant = "clinic-2"
	st, err = src.stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
}

func TestRemoteSourceUsesClientConfig(t *testing.T) {
	ts, _ := startCatalogServer(t)
	cfg := &ClientConfig{ServerURL: ts.URL, APIKey: "secret", Tenant: "clinic-9"}
	require.NoError(t, cfg.WriteConfig(clientConfigFile))

	src, err := (&catalogFlags{}).remoteSource()
	require.NoError(t, err)
	assert.Equal(t, "clinic-9", src.tenant)

	src, err = (&catalogFlags{tenant: "clinic-1"}).remoteSource()
	require.NoError(t, err)
	assert.Equal(t, "clinic-1", src.tenant)
	assert.Equal(t, string(testTenant), src.headers()[server.HeaderTenantID])
	assert.Equal(t, catcommon.ApiVersion, src.headers()[server.HeaderApiVersion])
}

func TestRemoteSourceNeedsServer(t *testing.T) {
	clientConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { clientConfigFile = "" })

	_, err := (&catalogFlags{}).remoteSource()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoteErrorsCarryServerMessage(t *testing.T) {
	ts, _ := startCatalogServer(t)
	flags := catalogFlags{server: ts.URL, tenant: "not a tenant!"}
	src, err := flags.remoteSource()
	require.NoError(t, err)

	_, err = src.stats(context.Background())
	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.StatusCode)
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.csv")
	require.NoError(t, writeOutput(path, "Name,Slug"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Slug\n", string(data))
}
