package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fieldops/fieldsync/internal/api"
	"github.com/fieldops/fieldsync/internal/api/v1/mocks"
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/store/memory"
)

func newTestServer(t *testing.T, opts ...api.ServerOption) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	st := memory.New()
	return api.NewServer(mocks.NewMockSyncGroup(ctrl), connectivity.New(nil), st, edit.New(st), opts...)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	req, err := http.NewRequest("GET", "/version", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "commit")
	assert.Contains(t, response, "build_date")
	assert.Contains(t, response, "go_version")
	assert.Contains(t, response, "platform")
	assert.Contains(t, response, "protocol_version")
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	server := newTestServer(t,
		api.WithMiddlewares(tag("first"), api.LoggingMiddleware),
		api.WithMiddlewares(tag("second")))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, api.WithMiddlewares(api.LoggingMiddleware))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v2/work_orders", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
