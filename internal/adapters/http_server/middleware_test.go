package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	httpserver "staybook/internal/adapters/http_server"
)

func TestAccess_LogsRoutePatternAndLevel(t *testing.T) {
	var buf bytes.Buffer
	m := chi.NewRouter()
	m.Use(chimw.RequestID)
	m.Use(httpserver.Access(zerolog.New(&buf)))
	m.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})

	for _, tc := range []struct {
		path   string
		status int
		level  string
		bytes  int
	}{
		{"/things/7", http.StatusOK, "info", 5},
		{"/things/down", http.StatusServiceUnavailable, "error", 0},
		{"/nowhere", http.StatusNotFound, "warn", -1},
	} {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.RemoteAddr = "10.0.0.9:51234"
		m.ServeHTTP(httptest.NewRecorder(), req)

		var line struct {
			Level     string `json:"level"`
			RequestID string `json:"request_id"`
			Route     string `json:"route"`
			Status    int    `json:"status"`
			Bytes     int    `json:"bytes"`
			Remote    string `json:"remote"`
		}
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: decode %q: %v", tc.path, buf.String(), err)
		}
		if line.Status != tc.status || line.Level != tc.level || line.RequestID == "" || line.Remote != "10.0.0.9" {
			t.Fatalf("%s: %+v", tc.path, line)
		}
		if tc.bytes >= 0 && line.Bytes != tc.bytes {
			t.Fatalf("%s: bytes = %d", tc.path, line.Bytes)
		}
		if tc.status != http.StatusNotFound && line.Route != "/things/{id}" {
			t.Fatalf("%s: route = %q", tc.path, line.Route)
		}
	}
}
