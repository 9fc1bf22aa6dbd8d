package launch

import (
	"path/filepath"
	"testing"

	"github.com/nickheyer/launcherd/internal/loader"
)

func TestBuildClientJarDownload(t *testing.T) {
	manifest := &loader.VersionManifest{
		ID: "1.20.1",
		Downloads: loader.Downloads{
			Client: &loader.Artifact{URL: "https://example/client.jar", SHA1: "abc123", Size: 10},
		},
	}
	roots := Roots{Versions: "/cache/versions"}

	dl, err := BuildClientJarDownload(manifest, roots)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/cache/versions", "clients", "abc123.jar")
	if dl.Path != want {
		t.Errorf("Path = %q, want %q", dl.Path, want)
	}
}

func TestBuildClientJarDownloadMissing(t *testing.T) {
	manifest := &loader.VersionManifest{ID: "1.20.1"}
	if _, err := BuildClientJarDownload(manifest, Roots{}); err == nil {
		t.Error("expected error when downloads.client is absent")
	}
}

func TestBuildAssetObjectDownloads(t *testing.T) {
	index := AssetIndex{Objects: map[string]AssetObject{
		"icons/pack.png": {Hash: "aabbccddeeff00112233445566778899aabbccdd", Size: 42},
	}}
	roots := Roots{Assets: "/cache/assets"}

	got := BuildAssetObjectDownloads(index, roots)
	if len(got) != 1 {
		t.Fatalf("expected 1 downloadable, got %d", len(got))
	}
	want := filepath.Join("/cache/assets", "objects", "aa", "aabbccddeeff00112233445566778899aabbccdd")
	if got[0].Path != want {
		t.Errorf("Path = %q, want %q", got[0].Path, want)
	}
}

func TestBuildLibraryDownloadsFiltersByRule(t *testing.T) {
	manifest := &loader.VersionManifest{
		Libraries: []loader.Library{
			{
				Name:      "allowed:lib:1.0",
				Downloads: loader.LibraryDownloads{Artifact: &loader.Artifact{Path: "allowed/lib-1.0.jar", URL: "https://example/a.jar", SHA1: "a1"}},
			},
			{
				Name:      "windows-only:lib:1.0",
				Downloads: loader.LibraryDownloads{Artifact: &loader.Artifact{Path: "windows/lib-1.0.jar", URL: "https://example/w.jar", SHA1: "w1"}},
				Rules:     []loader.Rule{{Action: "allow", OS: &loader.OSRule{Name: "windows"}}},
			},
		},
	}
	roots := Roots{Libraries: "/cache/libraries"}

	downloads, paths, err := BuildLibraryDownloads(manifest, roots, nil)
	if err != nil {
		t.Fatal(err)
	}

	if CurrentOSName() == "windows" {
		if len(downloads) != 2 || len(paths) != 2 {
			t.Fatalf("expected both libraries on windows, got %d downloads, %d paths", len(downloads), len(paths))
		}
	} else {
		if len(downloads) != 1 || len(paths) != 1 {
			t.Fatalf("expected only the unconditional library, got %d downloads, %d paths", len(downloads), len(paths))
		}
	}
}
