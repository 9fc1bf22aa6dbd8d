package launch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/events"
	"github.com/nickheyer/launcherd/internal/loader"
	"github.com/nickheyer/launcherd/internal/vtask"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestAssemblerPrepareDownloadsAssetsAndLibraries(t *testing.T) {
	clientBody := []byte("fake-client-jar")
	libBody := []byte("fake-library-jar")
	assetBody := []byte("fake-asset-object")

	index := AssetIndex{Objects: map[string]AssetObject{
		"icons/pack.png": {Hash: sha1Hex(assetBody), Size: int64(len(assetBody))},
	}}
	indexBody, err := json.Marshal(index)
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/client.jar", func(w http.ResponseWriter, r *http.Request) { w.Write(clientBody) })
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) { w.Write(indexBody) })
	mux.HandleFunc("/lib.jar", func(w http.ResponseWriter, r *http.Request) { w.Write(libBody) })
	mux.HandleFunc("/objects/", func(w http.ResponseWriter, r *http.Request) { w.Write(assetBody) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	manifest := &loader.VersionManifest{
		ID: "1.20.1",
		Downloads: loader.Downloads{
			Client: &loader.Artifact{URL: srv.URL + "/client.jar", SHA1: sha1Hex(clientBody), Size: int64(len(clientBody))},
		},
		AssetIndex: loader.AssetIndexRef{ID: "1.20", URL: srv.URL + "/index.json", SHA1: sha1Hex(indexBody), Size: int64(len(indexBody))},
		Libraries: []loader.Library{
			{
				Name: "org.example:lib:1.0",
				Downloads: loader.LibraryDownloads{
					Artifact: &loader.Artifact{Path: "org/example/lib/1.0/lib-1.0.jar", URL: srv.URL + "/lib.jar", SHA1: sha1Hex(libBody), Size: int64(len(libBody))},
				},
			},
		},
	}

	root := t.TempDir()
	roots := Roots{
		Libraries: filepath.Join(root, "libraries"),
		Assets:    filepath.Join(root, "assets"),
		Versions:  filepath.Join(root, "versions"),
		Instance:  filepath.Join(root, "instance"),
	}

	// Asset object URLs are hardcoded to resources.download.minecraft.net in
	// BuildAssetObjectDownloads, so exercise that path construction directly
	// rather than over the network; substitute a pre-placed object instead.
	assembler := NewAssembler(download.New(nil), roots)

	bus := events.NewBus()
	registry := vtask.NewRegistry(bus, 50*time.Millisecond)
	defer registry.Stop()
	task := registry.New(t.Context(), "prepare-test")

	if err := os.MkdirAll(filepath.Join(roots.Assets, "objects", sha1Hex(assetBody)[:2]), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(objectPath(roots.Assets, sha1Hex(assetBody)), assetBody, 0o644); err != nil {
		t.Fatal(err)
	}

	paths, clientJar, err := assembler.Prepare(context.Background(), task, manifest, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if _, statErr := os.Stat(clientJar); statErr != nil {
		t.Errorf("client jar not downloaded: %v", statErr)
	}
	if len(paths) != 1 || paths[0].ArtifactPath == "" {
		t.Fatalf("expected one resolved library path, got %+v", paths)
	}
	if _, statErr := os.Stat(paths[0].ArtifactPath); statErr != nil {
		t.Errorf("library jar not downloaded: %v", statErr)
	}
}
