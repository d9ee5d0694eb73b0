package facts

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRandom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","text":"Honey never spoils.","source":"test"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).Random(t.Context())
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if got != "Honey never spoils." {
		t.Fatalf("unexpected fact %q", got)
	}
}

func TestRandomFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("nope")) }},
		{"empty text", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"text":""}`)) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"text":"late"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			if _, err := NewClient(srv.URL, 50*time.Millisecond).Random(t.Context()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", 0)
	if c.url != DefaultURL {
		t.Fatalf("expected default url, got %q", c.url)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v", c.httpClient.Timeout)
	}
}
