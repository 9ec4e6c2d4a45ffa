package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "Authorization=Basic abc", map[string]string{"Authorization": "Basic abc"}},
		{"multiple", "a=1, b=2", map[string]string{"a": "1", "b": "2"}},
		{"missing value", "a=", map[string]string{"a": ""}},
		{"no equals dropped", "garbage", map[string]string{}},
		{"value with equals", "token=a=b", map[string]string{"token": "a=b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeaders(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d headers, want %d", len(got), len(tt.want))
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	ep, err := parseEndpoint(OTELConfig{Endpoint: "http://localhost:4318/otlp/", Headers: "x=y"})
	if err != nil {
		t.Fatalf("parseEndpoint: %v", err)
	}
	if ep.host != "localhost:4318" {
		t.Errorf("host = %q", ep.host)
	}
	if ep.basePath != "/otlp" {
		t.Errorf("basePath = %q", ep.basePath)
	}
	if !ep.insecure {
		t.Error("http scheme should be insecure")
	}
	if ep.headers["x"] != "y" {
		t.Errorf("headers = %v", ep.headers)
	}

	ep, err = parseEndpoint(OTELConfig{Endpoint: "https://collector.example.com"})
	if err != nil {
		t.Fatalf("parseEndpoint: %v", err)
	}
	if ep.insecure {
		t.Error("https scheme must not be insecure")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordTail(ctx, 100, 2)
	m.RecordClassified(ctx, "error", "go")
	m.RecordTriggerFired(ctx, "single_error")
	m.RecordTriggerSuppressed(ctx, "crash")
	m.RecordWatcherSpawn(ctx)
	m.RecordWatcherCrash(ctx)
	m.RecordTokens(ctx, "anthropic", "claude-sonnet-4-5", 10, 20)
}

func TestInitWithoutEndpoint(t *testing.T) {
	tel, err := Init(context.Background(), OTELConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tel.Tracer == nil {
		t.Error("expected a usable tracer without an endpoint")
	}
	if tel.Metrics == nil {
		t.Error("expected usable metric instruments without an endpoint")
	}
	tel.Shutdown(context.Background())
}
