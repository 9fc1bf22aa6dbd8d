package modpack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const modrinthBaseURL = "https://api.modrinth.com/v2"

// ModrinthClient is adapted from the deleted indexer client
// (internal/indexers/modrinth/client.go): same doRequest/User-Agent/error
// formatting shape, trimmed to the endpoints the materializer and mod
// metadata cache need, plus a rate limiter per spec.md §5.
type ModrinthClient struct {
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewModrinthClient(userAgent string) *ModrinthClient {
	return &ModrinthClient{
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second/4), 4),
	}
}

// ModrinthFile mirrors the subset of a Modrinth version file we need.
type ModrinthFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Primary  bool   `json:"primary"`
	Size     int64  `json:"size"`
	Hashes   struct {
		SHA512 string `json:"sha512"`
		SHA1   string `json:"sha1"`
	} `json:"hashes"`
}

// Version mirrors GET /project/{id}/version/{vid}'s relevant fields.
type Version struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	VersionNum   string         `json:"version_number"`
	GameVersions []string       `json:"game_versions"`
	Loaders      []string       `json:"loaders"`
	Files        []ModrinthFile `json:"files"`
}

// GetVersion retrieves a specific pack version by id.
func (c *ModrinthClient) GetVersion(ctx context.Context, versionID string) (*Version, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/version/%s", modrinthBaseURL, versionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var v Version
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &v, nil
}

// GetLatestVersion returns the newest version Modrinth lists for
// projectID, used to compute modpack_update_modrinth per spec.md §165.
// The listing endpoint returns versions newest-first.
func (c *ModrinthClient) GetLatestVersion(ctx context.Context, projectID string) (*Version, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/project/%s/version", modrinthBaseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var versions []Version
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("project %s has no versions", projectID)
	}
	return &versions[0], nil
}

// MatchBySHA1 resolves a batch of sha1 hashes to Modrinth versions, per
// spec.md §4.7's "Modrinth by SHA-512 lookup endpoint" (sha1 is accepted
// by the same endpoint via the algorithm query parameter).
func (c *ModrinthClient) MatchBySHA1(ctx context.Context, hashes []string) (map[string]Version, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"hashes": hashes, "algorithm": "sha1"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := modrinthBaseURL + "/version_files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var out map[string]Version
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func (c *ModrinthClient) formatError(req *http.Request, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	body := string(bodyBytes)
	if body != "" {
		return fmt.Errorf("modrinth API error: %s (url=%s body=%s)", resp.Status, req.URL.String(), body)
	}
	return fmt.Errorf("modrinth API error: %s (url=%s)", resp.Status, req.URL.String())
}
