package httpcache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newClient(t *testing.T) *http.Client {
	db := openTestDB(t)
	return &http.Client{Transport: New(db, nil, http.DefaultTransport)}
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return resp
}

// Ported from cache_middleware.rs's test_expires.
func TestExpires(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newClient(t)
	r1 := get(t, client, srv.URL)
	if got := r1.Header.Get("Cached"); got != "false" {
		t.Errorf("first request Cached = %q, want false", got)
	}

	r2 := get(t, client, srv.URL)
	if got := r2.Header.Get("Cached"); got != "true" {
		t.Errorf("second request Cached = %q, want true", got)
	}
	if hits != 1 {
		t.Errorf("origin hit %d times, want 1", hits)
	}
}

// Ported from cache_middleware.rs's test_max_age.
func TestMaxAge(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Cache-Control", "max-age=1")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newClient(t)
	r1 := get(t, client, srv.URL)
	if got := r1.Header.Get("Cached"); got != "false" {
		t.Errorf("request 1 Cached = %q, want false", got)
	}
	r2 := get(t, client, srv.URL)
	if got := r2.Header.Get("Cached"); got != "true" {
		t.Errorf("request 2 Cached = %q, want true", got)
	}

	time.Sleep(1100 * time.Millisecond)

	r3 := get(t, client, srv.URL)
	if got := r3.Header.Get("Cached"); got != "false" {
		t.Errorf("request 3 (post-expiry) Cached = %q, want false", got)
	}
	if hits != 2 {
		t.Errorf("origin hit %d times, want 2", hits)
	}
}

// Ported from cache_middleware.rs's test_no_store.
func TestNoStore(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newClient(t)
	get(t, client, srv.URL)
	get(t, client, srv.URL)
	if hits != 2 {
		t.Errorf("origin hit %d times with no-store, want 2 (never cached)", hits)
	}
}

// Ported from cache_middleware.rs's test_etag.
func TestETag(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newClient(t)
	r1 := get(t, client, srv.URL)
	if got := r1.Header.Get("Cached"); got != "false" {
		t.Errorf("request 1 Cached = %q, want false", got)
	}

	r2 := get(t, client, srv.URL)
	if got := r2.Header.Get("Cached"); got != "true" {
		t.Errorf("request 2 Cached (same ETag) = %q, want true", got)
	}
}

// Ported from cache_middleware.rs's test_last_modified.
func TestLastModified(t *testing.T) {
	lm := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", lm)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newClient(t)
	get(t, client, srv.URL)
	r2 := get(t, client, srv.URL)
	if got := r2.Header.Get("Cached"); got != "true" {
		t.Errorf("request 2 Cached (same Last-Modified) = %q, want true", got)
	}
}

func TestAvoidCachingHeaderBypasses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("avoid-caching") != "" {
			t.Errorf("avoid-caching header was forwarded to origin, should be stripped")
		}
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	db := openTestDB(t)
	client := &http.Client{Transport: New(db, nil, http.DefaultTransport)}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("avoid-caching", "1")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	resp2, err := client.Do(req)
	if err != nil {
		t.Fatalf("do 2: %v", err)
	}
	resp2.Body.Close()

	if hits != 2 {
		t.Errorf("origin hit %d times with avoid-caching set, want 2", hits)
	}
}
