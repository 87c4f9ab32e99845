package census

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{ServiceID: "test", BaseURL: srv.URL}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_MissingServiceID(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	if !errors.Is(err, ErrNoServiceID) {
		t.Fatalf("New error = %v, want ErrNoServiceID", err)
	}
}

func TestClient_Get(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Write([]byte(`{"character_list":[{"character_id":"1","name":{"first":"Wrel"}}],"returned":1}`))
	}, nil)

	resp, err := c.Get(context.Background(), NewQuery("character").Where("name.first_lower", "wrel"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Returned != 1 {
		t.Errorf("Returned = %d, want 1", resp.Returned)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(resp.Records))
	}

	var chars []struct {
		CharacterID string `json:"character_id"`
	}
	if err := resp.Decode(&chars); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if chars[0].CharacterID != "1" {
		t.Errorf("CharacterID = %q, want 1", chars[0].CharacterID)
	}

	wantPath := "/s:test/get/ps2:v2/character?name.first_lower=wrel"
	if gotPath != wantPath {
		t.Errorf("request path = %s, want %s", gotPath, wantPath)
	}
}

func TestClient_Get_ErrorShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error key", `{"error":"No data found."}`},
		{"errorCode key", `{"errorCode":"SERVER_ERROR","errorMessage":"INVALID_SEARCH_TERM"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, nil)

			_, err := c.Get(context.Background(), NewQuery("character"))
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Get error = %v, want *APIError", err)
			}
		})
	}
}

func TestClient_Get_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}, nil)

	_, err := c.Get(context.Background(), NewQuery("character"))
	if err == nil {
		t.Fatal("Get = nil error, want status error")
	}
}

func TestClient_Count(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":21048}`))
	}, nil)

	n, err := c.Count(context.Background(), NewQuery("item"))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 21048 {
		t.Errorf("Count = %d, want 21048", n)
	}
}

func TestClient_Get_FallbackListKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"characters_friend_list":[{"a":"1"}],"returned":1}`))
	}, nil)

	resp, err := c.Get(context.Background(), NewQuery("characters_friend"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Errorf("Records = %d, want 1", len(resp.Records))
	}
}

func TestClient_CachedResponses(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"world_list":[{"world_id":"1"}],"returned":1}`))
	}, func(cfg *Config) {
		cfg.CacheSize = 16
		cfg.CacheTTL = time.Minute
	})

	q := NewQuery("world").Limit(100)
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), q); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}
