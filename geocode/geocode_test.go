package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveSuburb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("lat"); got != "51.3079" {
			t.Errorf("lat = %q, want %q", got, "51.3079")
		}
		if got := q.Get("lon"); got != "12.3761" {
			t.Errorf("lon = %q, want %q", got, "12.3761")
		}
		if got := q.Get("format"); got != "json" {
			t.Errorf("format = %q, want %q", got, "json")
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}

		w.Write([]byte(`{"address": {"suburb": "Zentrum-West", "city": "Leipzig"}}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTimeout(5*time.Second))

	suburb, err := client.ResolveSuburb(context.Background(), 51.3079, 12.3761)
	if err != nil {
		t.Fatalf("ResolveSuburb failed: %v", err)
	}
	if suburb != "Zentrum-West" {
		t.Errorf("suburb = %q, want %q", suburb, "Zentrum-West")
	}
}

func TestResolveSuburbMissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address": {"city": "Leipzig"}}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.ResolveSuburb(context.Background(), 51.3079, 12.3761)
	if err == nil {
		t.Fatal("expected error for missing suburb field")
	}
}

func TestResolveSuburbServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.ResolveSuburb(context.Background(), 51.3079, 12.3761)
	if err == nil {
		t.Fatal("expected error for HTTP 503")
	}
}
