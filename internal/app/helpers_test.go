package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"specstudio/internal/config"
	"specstudio/internal/project"
	"specstudio/internal/secret"
)

const testSecret = "test-secret"

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BaseURL = "https://studio.example"
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, mutate func(*Deps)) *HTTPServer {
	t.Helper()
	deps := Deps{
		Config:  testConfig(),
		Secrets: secret.New(testSecret),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewHTTPServer(deps)
}

func snapshotForm(snap project.Snapshot) url.Values {
	form := url.Values{}
	form.Set("script_text", snap.Script)
	form.Set("rules_text", snap.Rules)
	form.Set("scenes_json", project.ScenesJSON(snap.Scenes))
	form.Set("shots_json", project.ShotsJSON(snap.Shots))
	form.Set(project.PackCore, "on")
	if snap.Packs.Opinionated {
		form.Set(project.PackOpinionated, "on")
	}
	if snap.Packs.Strict {
		form.Set(project.PackStrict, "on")
	}
	return form
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["code"] != code {
		t.Fatalf("code = %v, want %s", body["code"], code)
	}
	return body
}
