package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	var gotBody, gotAuth, gotTenant, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("X-Tenant-ID")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient(StaticConfig{ServerURL: srv.URL + "/hooks", APIKey: "secret"})
	body, err := c.PostJSON(context.Background(), "catalog", map[string]int{"n": 1}, map[string]string{"X-Tenant-ID": "T1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.JSONEq(t, `{"n":1}`, gotBody)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "T1", gotTenant)
	assert.Equal(t, "/hooks/catalog", gotPath)
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		case "server":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"result":0,"error":"slug already exists"}`))
		case "plain":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(StaticConfig{ServerURL: srv.URL})

	var httpErr *HTTPError
	_, err := c.Get(context.Background(), "/services", map[string]string{"case": "server"}, nil)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
	assert.Equal(t, "slug already exists", httpErr.Message)
	assert.False(t, httpErr.Retryable())

	_, err = c.Get(context.Background(), "/services", map[string]string{"case": "plain"}, nil)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "upstream down", httpErr.Message)
	assert.True(t, httpErr.Retryable())

	_, err = c.Get(context.Background(), "/services", nil, nil)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "Not Found", httpErr.Message)
}

func TestInvalidServerURL(t *testing.T) {
	c := NewClient(StaticConfig{ServerURL: "://bad"})
	_, err := c.Get(context.Background(), "x", nil, nil)
	assert.Error(t, err)
}
