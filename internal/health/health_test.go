package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRoot(t *testing.T) {
	srv := httptest.NewServer(NewRouter(NewHandler(0)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "MindCheck") {
		t.Fatalf("body = %q", body)
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name     string
		dbErr    error
		wantCode int
		wantDB   string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"degraded", errors.New("disk gone"), http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(0).Add("database", func(context.Context) error { return tt.dbErr })
			rec := httptest.NewRecorder()
			NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Checks["database"] != tt.wantDB || body.Checks["bot"] != "ok" {
				t.Fatalf("checks = %v", body.Checks)
			}
		})
	}
}
