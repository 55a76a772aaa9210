package rating

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nextplay/internal/catalog"
	"nextplay/internal/models"
	"nextplay/internal/viewcache"
)

func readyCache(t *testing.T, keys ...viewcache.Key) *viewcache.Cache {
	t.Helper()
	cache := viewcache.New("u1")
	for _, k := range keys {
		cache.Activate(context.Background(), k, func(ctx context.Context) ([]models.CatalogItem, error) {
			return []models.CatalogItem{{Game: models.Game{ID: "seed"}}}, nil
		})
		cache.Wait(context.Background(), k)
	}
	return cache
}

func TestSubmitInvalidatesDependencyMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	cache := readyCache(t, viewcache.AllKeys()...)
	p := NewPipeline(catalog.New(srv.URL, time.Second), cache, DefaultAffects())

	if err := p.Submit(context.Background(), "u1", "g9", 5); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for _, k := range DefaultAffects() {
		if got := cache.Get(k).Status; got != viewcache.StatusIdle {
			t.Errorf("Expected %s invalidated, got %v", k, got)
		}
	}
	for _, k := range []viewcache.Key{viewcache.KeyPopular, viewcache.KeyBrowse} {
		if got := cache.Get(k).Status; got != viewcache.StatusReady {
			t.Errorf("Expected %s untouched, got %v", k, got)
		}
	}
}

func TestSubmitWithPopularPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	cache := readyCache(t, viewcache.AllKeys()...)
	p := NewPipeline(catalog.New(srv.URL, time.Second), cache, AffectsWithPopular())

	if err := p.Submit(context.Background(), "u1", "g9", 4); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := cache.Get(viewcache.KeyPopular).Status; got != viewcache.StatusIdle {
		t.Errorf("Expected popular invalidated under the ratings-sensitive policy, got %v", got)
	}
}

func TestSubmitFailureInvalidatesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cache := readyCache(t, viewcache.AllKeys()...)
	p := NewPipeline(catalog.New(srv.URL, time.Second), cache, DefaultAffects())

	if err := p.Submit(context.Background(), "u1", "g9", 5); err == nil {
		t.Fatal("Expected error from failing service")
	}
	for _, k := range viewcache.AllKeys() {
		if got := cache.Get(k).Status; got != viewcache.StatusReady {
			t.Errorf("Failed submission must leave %s untouched, got %v", k, got)
		}
	}
}

func TestSubmitValidatesRange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cache := viewcache.New("u1")
	p := NewPipeline(catalog.New(srv.URL, time.Second), cache, DefaultAffects())

	cases := []struct {
		score float64
		valid bool
	}{
		{1, true},
		{5, true},
		{3.5, true},
		{0.99, false},
		{5.01, false},
		{-2, false},
	}
	for _, c := range cases {
		err := p.Submit(context.Background(), "u1", "g1", c.score)
		if c.valid && err != nil {
			t.Errorf("Submit(%v) = %v, want nil", c.score, err)
		}
		if !c.valid && err != models.ErrInvalidRating {
			t.Errorf("Submit(%v) = %v, want ErrInvalidRating", c.score, err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected only valid scores to reach the service, got %d calls", got)
	}
}
