package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr string
	}{
		{name: "plain", path: "/t/acme", want: "acme"},
		{name: "dashes and dots", path: "/t/acme-north.eu", want: "acme-north.eu"},
		{name: "encoded", path: "/t/tmp-%61bc", want: "tmp-abc"},
		{name: "encoded whitespace", path: "/t/a%20b", wantErr: "invalid characters"},
		{name: "encoded slash", path: "/t/a%2Fb", wantErr: "invalid characters"},
		{name: "blank", path: "/t/%20", wantErr: "cannot be empty"},
		{name: "bad escape", path: "/t/%zz", wantErr: "invalid URL encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			var gotErr error
			r := chi.NewRouter()
			r.Get("/t/{tenant}", func(_ http.ResponseWriter, req *http.Request) {
				got, gotErr = PathParam(req, "tenant")
			})

			req := httptest.NewRequest(http.MethodGet, "/t/x", nil)
			req.URL.RawPath = tt.path
			req.URL.Path = "/t/placeholder"
			r.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantErr != "" {
				require.Error(t, gotErr)
				assert.Contains(t, gotErr.Error(), tt.wantErr)
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "tenant not found", http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "tenant not found", body.Error)
}
