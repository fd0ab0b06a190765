package ws

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ecg-monitor/backend/internal/ecg"
)

func testServer(t *testing.T, authToken string) (*Server, *ecg.Session, *httptest.Server) {
	t.Helper()

	session := ecg.NewSession(ecg.DefaultConfig())
	b := NewBroadcaster(session, time.Hour, 20*time.Millisecond)

	cfg := testConfig()
	cfg.Server.AuthToken = authToken
	srv := NewServer(cfg, session, b, "simulator")

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, session, ts
}

func TestHandleData(t *testing.T) {
	_, session, ts := testServer(t, "")
	session.AddSample(100, 10.0)
	session.AddSample(16000, 10.004)

	resp, err := http.Get(ts.URL + "/api/data")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var payload DataPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding /api/data: %v", err)
	}
	if len(payload.ECG) != 2 {
		t.Errorf("ECG has %d points, want 2", len(payload.ECG))
	}
	if payload.Events == nil {
		t.Error("Events is null, want []")
	}
}

func TestHandleHealth(t *testing.T) {
	_, _, ts := testServer(t, "")

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health struct {
		OK     bool   `json:"ok"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if !health.OK {
		t.Error("ok = false")
	}
	if health.Source != "simulator" {
		t.Errorf("source = %q, want simulator", health.Source)
	}
}

func TestHandleReset(t *testing.T) {
	_, session, ts := testServer(t, "")
	session.AddSample(100, 10.0)

	resp, err := http.Post(ts.URL+"/api/reset", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if snap := session.Snapshot(); len(snap.Samples) != 0 {
		t.Errorf("session has %d samples after reset", len(snap.Samples))
	}
}

func TestHandleResetRejectsGet(t *testing.T) {
	_, _, ts := testServer(t, "")
	resp, err := http.Get(ts.URL + "/api/reset")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleReportReturnsZip(t *testing.T) {
	_, session, ts := testServer(t, "")
	session.AddSample(100, 10.0)

	resp, err := http.Get(ts.URL + "/api/report")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("body is not a valid zip: %v", err)
	}
}

func TestHandleEvents(t *testing.T) {
	_, session, ts := testServer(t, "")
	// Two beats 2s apart produce 30 BPM and trip Bradycardia.
	session.AddSample(16000, 10.0)
	session.AddSample(16000, 12.0)

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var events struct {
		Active []string          `json:"active"`
		Counts map[string]uint64 `json:"counts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events.Active) != 1 || events.Active[0] != "Bradycardia" {
		t.Errorf("active = %v, want [Bradycardia]", events.Active)
	}
	if events.Counts["Bradycardia"] != 1 {
		t.Errorf("counts = %v", events.Counts)
	}
}

func TestShutdownRequiresToken(t *testing.T) {
	called := false
	srv, _, ts := testServer(t, "topsecret")
	srv.SetShutdown(func() { called = true })

	// No token: forbidden.
	resp, err := http.Post(ts.URL+"/api/shutdown", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status without token = %d, want 403", resp.StatusCode)
	}
	if called {
		t.Fatal("shutdown ran without authorization")
	}

	// Header token: accepted.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/shutdown", nil)
	req.Header.Set("X-ECG-Token", "topsecret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status with token = %d, want 204", resp.StatusCode)
	}
	if !called {
		t.Error("shutdown not invoked")
	}
}

func TestShutdownDisabledWithoutConfiguredToken(t *testing.T) {
	srv, _, ts := testServer(t, "")
	srv.SetShutdown(func() { t.Error("shutdown ran with no token configured") })

	resp, err := http.Post(ts.URL+"/api/shutdown?token=", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestShutdownQueryToken(t *testing.T) {
	called := false
	srv, _, ts := testServer(t, "abc")
	srv.SetShutdown(func() { called = true })

	resp, err := http.Post(ts.URL+"/api/shutdown?token=abc", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || !called {
		t.Errorf("status = %d, called = %v", resp.StatusCode, called)
	}
}

func TestRoutesServeJSON(t *testing.T) {
	_, _, ts := testServer(t, "")
	for _, route := range []string{"/api/data", "/api/health", "/api/events"} {
		resp, err := http.Get(ts.URL + route)
		if err != nil {
			t.Fatal(err)
		}
		ct := resp.Header.Get("Content-Type")
		resp.Body.Close()
		if !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s Content-Type = %q, want application/json", route, ct)
		}
	}
}
