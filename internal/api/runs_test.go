package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ishlunc/ishlunc/internal/artifact"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	storage := artifact.NewLocalStorage(t.TempDir())
	h := NewHandler(nil, nil, storage, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postRun(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /api/v1/runs: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitRun_InvalidBody(t *testing.T) {
	srv := newTestServer(t)

	resp := postRun(t, srv, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed body, got %d", resp.StatusCode)
	}
}

func TestSubmitRun_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty request", `{}`},
		{"missing layers", `{"scenario":"atlas"}`},
		{"missing target layer", `{"scenario":"atlas","source_layer":"bho_area"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRun(t, srv, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSubmitRun_BadConfig(t *testing.T) {
	srv := newTestServer(t)

	resp := postRun(t, srv, `{
		"scenario": "atlas",
		"source_layer": "bho_area",
		"target_layer": "units",
		"statistics": ["variance"]
	}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown statistic, got %d", resp.StatusCode)
	}
}

func TestSubmitRun_MissingLayer(t *testing.T) {
	srv := newTestServer(t)

	// Nothing was uploaded to artifact storage, so the layer lookup fails.
	resp := postRun(t, srv, `{
		"scenario": "atlas",
		"source_layer": "bho_area",
		"target_layer": "units",
		"statistics": ["mean"]
	}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a missing layer, got %d", resp.StatusCode)
	}
}

func TestLayerKey(t *testing.T) {
	if got := layerKey("bho_area.geojson"); got != "bho_area" {
		t.Errorf("expected bho_area, got %q", got)
	}
	if got := layerKey("bho_area"); got != "bho_area" {
		t.Errorf("expected bho_area, got %q", got)
	}
}
