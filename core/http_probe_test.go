package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newProbeConfig(url string, params map[string]string) CheckConfig {
	if params == nil {
		params = make(map[string]string)
	}
	params["url"] = url
	return CheckConfig{
		Name:            "web",
		Type:            "http",
		IntervalSeconds: 30,
		Params:          params,
	}
}

func TestHTTPCheckRequiresURL(t *testing.T) {
	_, err := NewHTTPCheck(CheckConfig{Name: "web", Type: "http"})
	if err == nil {
		t.Error("Missing url param should error")
	}
}

func TestHTTPCheckPass(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	check, err := NewHTTPCheck(newProbeConfig(server.URL, nil))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}

	result := check.Run(context.Background())
	if result.Status != StatusPass {
		t.Errorf("Expected pass, got %s (%s)", result.Status, result.ErrorMessage)
	}
	if result.CheckName != "web" {
		t.Errorf("Wrong check name: %s", result.CheckName)
	}
	if result.Metadata["url"] != server.URL {
		t.Errorf("Expected url metadata, got %v", result.Metadata)
	}
}

func TestHTTPCheckFailsOnStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	check, err := NewHTTPCheck(newProbeConfig(server.URL, nil))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}

	result := check.Run(context.Background())
	if result.Status != StatusFail {
		t.Errorf("Expected fail on 502, got %s", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Error("Expected an error message")
	}
}

func TestHTTPCheckFailsOnUnreachable(t *testing.T) {
	check, err := NewHTTPCheck(newProbeConfig("http://127.0.0.1:1", map[string]string{"timeout_seconds": "1"}))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}

	result := check.Run(context.Background())
	if result.Status != StatusFail {
		t.Errorf("Expected fail on connection error, got %s", result.Status)
	}
}

func TestHTTPCheckFindSubstring(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	found, err := NewHTTPCheck(newProbeConfig(server.URL, map[string]string{"find": "healthy"}))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}
	if result := found.Run(context.Background()); result.Status != StatusPass {
		t.Errorf("Expected pass when substring present, got %s (%s)", result.Status, result.ErrorMessage)
	}

	missing, err := NewHTTPCheck(newProbeConfig(server.URL, map[string]string{"find": "degraded"}))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}
	if result := missing.Run(context.Background()); result.Status != StatusFail {
		t.Errorf("Expected fail when substring missing, got %s", result.Status)
	}
}

func TestHTTPCheckLatencyBudgetDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	check, err := NewHTTPCheck(newProbeConfig(server.URL, map[string]string{"latency_budget_ms": "10"}))
	if err != nil {
		t.Fatalf("NewHTTPCheck failed: %v", err)
	}

	result := check.Run(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Expected degraded over latency budget, got %s", result.Status)
	}
	if result.DurationMS < 50 {
		t.Errorf("Duration not measured, got %dms", result.DurationMS)
	}
}

func TestNewCheckFromConfigUnknownType(t *testing.T) {
	_, err := NewCheckFromConfig(CheckConfig{Name: "x", Type: "carrier-pigeon"})
	if err == nil {
		t.Error("Unknown check type should error")
	}
}
