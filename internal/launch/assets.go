// Package launch implements the launch assembler of spec.md §4.6.
package launch

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/loader"
)

// Roots is the set of cache directories the launch assembler writes into,
// per spec.md §6's filesystem layout.
type Roots struct {
	Libraries string
	Assets    string
	Versions  string
	Instance  string
}

// AssetObject is one `{hash, size}` entry of an asset index document.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// AssetIndex is the downloaded `<assets>/indexes/<id>.json` document.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

// objectPath renders <assets>/objects/<hash[0..2]>/<hash>.
func objectPath(assetsRoot, hash string) string {
	if len(hash) < 2 {
		return filepath.Join(assetsRoot, "objects", hash)
	}
	return filepath.Join(assetsRoot, "objects", hash[:2], hash)
}

// BuildClientJarDownload returns the downloadable for downloads.client, per
// spec.md §4.6's "<versions>/clients/<sha1>.jar" rule.
func BuildClientJarDownload(manifest *loader.VersionManifest, roots Roots) (*download.Downloadable, error) {
	client := manifest.Downloads.Client
	if client == nil {
		return nil, fmt.Errorf("version manifest %s has no client download", manifest.ID)
	}
	target := filepath.Join(roots.Versions, "clients", client.SHA1+".jar")
	return &download.Downloadable{
		URL: client.URL, Path: target, Size: client.Size,
		Checksum: &download.Checksum{Algo: download.SHA1, Hex: client.SHA1},
	}, nil
}

// BuildAssetIndexDownload returns the downloadable for the asset index
// document itself, before its objects can be enumerated.
func BuildAssetIndexDownload(manifest *loader.VersionManifest, roots Roots) download.Downloadable {
	ref := manifest.AssetIndex
	target := filepath.Join(roots.Assets, "indexes", ref.ID+".json")
	return download.Downloadable{
		URL: ref.URL, Path: target, Size: ref.Size,
		Checksum: &download.Checksum{Algo: download.SHA1, Hex: ref.SHA1},
	}
}

// BuildAssetObjectDownloads expands a parsed asset index into one
// downloadable per object.
func BuildAssetObjectDownloads(index AssetIndex, roots Roots) []download.Downloadable {
	out := make([]download.Downloadable, 0, len(index.Objects))
	for _, obj := range index.Objects {
		out = append(out, download.Downloadable{
			URL:      "https://resources.download.minecraft.net/" + path.Join(obj.Hash[:2], obj.Hash),
			Path:     objectPath(roots.Assets, obj.Hash),
			Size:     obj.Size,
			Checksum: &download.Checksum{Algo: download.SHA1, Hex: obj.Hash},
		})
	}
	return out
}

// LibraryPaths is the resolved jar path plus an optional native-classifier
// jar path for one library under the current platform.
type LibraryPaths struct {
	Library      loader.Library
	ArtifactPath string
	NativePath   string
}

// BuildLibraryDownloads filters manifest.Libraries by their rule sets (see
// rules.go) and returns a downloadable per surviving artifact, plus any
// native-classifier jar for the current OS, per spec.md §4.6.
func BuildLibraryDownloads(manifest *loader.VersionManifest, roots Roots, features map[string]bool) ([]download.Downloadable, []LibraryPaths, error) {
	var downloads []download.Downloadable
	var paths []LibraryPaths

	for _, lib := range manifest.Libraries {
		if !LibraryAllowed(lib, features) {
			continue
		}

		lp := LibraryPaths{Library: lib}

		if lib.Downloads.Artifact != nil {
			art := lib.Downloads.Artifact
			target := filepath.Join(roots.Libraries, filepath.FromSlash(art.Path))
			downloads = append(downloads, download.Downloadable{
				URL: art.URL, Path: target, Size: art.Size,
				Checksum: &download.Checksum{Algo: download.SHA1, Hex: art.SHA1},
			})
			lp.ArtifactPath = target
		}

		if classifierKey, ok := lib.Natives[CurrentOSName()]; ok {
			art, ok := lib.Downloads.Classifiers[classifierKey]
			if ok {
				target := filepath.Join(roots.Libraries, filepath.FromSlash(art.Path))
				downloads = append(downloads, download.Downloadable{
					URL: art.URL, Path: target, Size: art.Size,
					Checksum: &download.Checksum{Algo: download.SHA1, Hex: art.SHA1},
				})
				lp.NativePath = target
			}
		}

		paths = append(paths, lp)
	}

	return downloads, paths, nil
}
