package loader

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newMerger(t *testing.T) (*Merger, *int64, *int64) {
	t.Helper()
	var listHits, manifestHits int64

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/version_manifest_v2.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&listHits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":[{"id":"1.20.1","url":"` + srv.URL + `/1.20.1.json"}]}`))
	})
	mux.HandleFunc("/1.20.1.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&manifestHits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1.20.1","main_class":"net.minecraft.client.main.Main","type":"release"}`))
	})

	m := New(srv.Client(), Config{ManifestListURL: srv.URL + "/version_manifest_v2.json"})
	return m, &listHits, &manifestHits
}

func TestResolveNoLoaderRefsFetchesBaseManifest(t *testing.T) {
	m, _, manifestHits := newMerger(t)

	manifest, warnings, err := m.Resolve(t.Context(), "1.20.1", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if manifest.ID != "1.20.1" {
		t.Errorf("manifest.ID = %q, want 1.20.1", manifest.ID)
	}
	if got := atomic.LoadInt64(manifestHits); got != 1 {
		t.Errorf("manifest fetched %d times, want 1", got)
	}
}

func TestResolveCachesReleaseURLAcrossCalls(t *testing.T) {
	m, listHits, _ := newMerger(t)

	if _, _, err := m.Resolve(t.Context(), "1.20.1", nil); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, _, err := m.Resolve(t.Context(), "1.20.1", nil); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if got := atomic.LoadInt64(listHits); got != 1 {
		t.Errorf("manifest list fetched %d times, want 1 (release URL should be cached)", got)
	}
}

func TestResolveUnknownReleaseErrors(t *testing.T) {
	m, _, _ := newMerger(t)

	if _, _, err := m.Resolve(t.Context(), "9.99.9", nil); err == nil {
		t.Fatal("expected error for unknown release, got nil")
	}
}
