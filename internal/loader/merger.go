package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nickheyer/launcherd/internal/cache"
	"github.com/nickheyer/launcherd/internal/db"
)

// releaseURLCacheTTL bounds how long a release's per-version manifest URL
// is trusted before the manifest list is re-fetched, per spec.md §4.5's
// upstream metadata service being the source of truth.
const releaseURLCacheTTL = 10 * time.Minute

// LoaderRef is {type, version} — one element of a StandardVersion's
// modloaders set, per spec.md §3.
type LoaderRef struct {
	Type    db.ModLoaderType
	Version string
}

// Merger resolves a release + modloaders set into a single merged
// VersionManifest, per spec.md §4.5.
type Merger struct {
	client          *http.Client
	manifestListURL string // Mojang-shaped version_manifest_v2.json
	forgeMetaURL    string // printf template: release, then loader version
	fabricMetaURL   string // templated manifest with dummy release placeholder
	quiltMetaURL    string

	releaseURLs *cache.TTLCache[string, string]
}

// Config carries the upstream metadata service endpoints, per spec.md
// §4.5's "upstream metadata service" collaborator.
type Config struct {
	ManifestListURL string
	ForgeMetaURL    string
	FabricMetaURL   string
	QuiltMetaURL    string
}

func New(client *http.Client, cfg Config) *Merger {
	return &Merger{
		client:          client,
		manifestListURL: cfg.ManifestListURL,
		forgeMetaURL:    cfg.ForgeMetaURL,
		fabricMetaURL:   cfg.FabricMetaURL,
		quiltMetaURL:    cfg.QuiltMetaURL,
		releaseURLs:     cache.NewTTLCache[string, string](),
	}
}

// Warning records a lower-precedence loader that was present but ignored.
type Warning struct {
	Ignored db.ModLoaderType
	Reason  string
}

// Resolve fetches the base manifest for release, selects the
// highest-precedence loader in refs (Forge > Fabric > Quilt), merges its
// partial manifest on top, and returns any precedence warnings.
func (m *Merger) Resolve(ctx context.Context, release string, refs []LoaderRef) (*VersionManifest, []Warning, error) {
	if len(refs) == 0 {
		base, err := m.fetchBaseManifest(ctx, release)
		return base, nil, err
	}

	winner := refs[0]
	for _, r := range refs[1:] {
		if db.ModLoaderPrecedence(r.Type) < db.ModLoaderPrecedence(winner.Type) {
			winner = r
		}
	}

	var warnings []Warning
	for _, r := range refs {
		if r.Type != winner.Type {
			warnings = append(warnings, Warning{Ignored: r.Type, Reason: "only one mod loader per instance is supported"})
		}
	}

	base, err := m.fetchBaseManifest(ctx, release)
	if err != nil {
		return nil, nil, err
	}

	partial, err := m.fetchPartialManifest(ctx, release, winner)
	if err != nil {
		return nil, nil, err
	}

	merged := Merge(*base, *partial)
	return &merged, warnings, nil
}

func (m *Merger) fetchBaseManifest(ctx context.Context, release string) (*VersionManifest, error) {
	url, ok := m.releaseURLs.Get(release)
	if !ok {
		listBody, err := m.get(ctx, m.manifestListURL)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest list: %w", err)
		}

		gjson.GetBytes(listBody, "versions").ForEach(func(_, v gjson.Result) bool {
			if v.Get("id").String() == release {
				url = v.Get("url").String()
				return false
			}
			return true
		})
		if url == "" {
			return nil, fmt.Errorf("release %q not found in manifest list", release)
		}
		m.releaseURLs.Set(release, url, releaseURLCacheTTL)
	}

	body, err := m.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch base manifest for %s: %w", release, err)
	}

	var manifest VersionManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("decode base manifest: %w", err)
	}
	return &manifest, nil
}

func (m *Merger) fetchPartialManifest(ctx context.Context, release string, ref LoaderRef) (*VersionManifest, error) {
	var url string
	switch ref.Type {
	case db.LoaderForge:
		url = fmt.Sprintf(m.forgeMetaURL, release, ref.Version)
	case db.LoaderFabric:
		url = strings.ReplaceAll(m.fabricMetaURL, "{release}", release)
		url = strings.ReplaceAll(url, "{version}", ref.Version)
	case db.LoaderQuilt:
		url = strings.ReplaceAll(m.quiltMetaURL, "{release}", release)
		url = strings.ReplaceAll(url, "{version}", ref.Version)
	default:
		return nil, fmt.Errorf("unsupported loader type %q", ref.Type)
	}

	body, err := m.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s partial manifest: %w", ref.Type, err)
	}

	var manifest VersionManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("decode %s partial manifest: %w", ref.Type, err)
	}
	return &manifest, nil
}

func (m *Merger) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %s for %s: %s", resp.Status, url, body)
	}
	return io.ReadAll(resp.Body)
}
