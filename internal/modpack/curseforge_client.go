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

const curseForgeBaseURL = "https://api.curseforge.com/v1"

// CurseForgeClient is templated on the deleted Modrinth indexer client's
// request/response shape, adding the x-api-key header CurseForge requires
// and a rate limiter per spec.md §5's per-platform back-pressure rule.
type CurseForgeClient struct {
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCurseForgeClient(apiKey, userAgent string) *CurseForgeClient {
	return &CurseForgeClient{
		apiKey:     apiKey,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second/4), 4),
	}
}

// ModFile is the subset of CurseForge's file response the materializer
// and mod metadata cache need.
type ModFile struct {
	ID          int    `json:"id"`
	ModID       int    `json:"modId"`
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	FileLength  int64  `json:"fileLength"`
}

type modFileResponse struct {
	Data ModFile `json:"data"`
}

// GetModFile fetches a single file's metadata, per spec.md §4.4's
// "get_mod_file(projectID, fileID)".
func (c *CurseForgeClient) GetModFile(ctx context.Context, projectID, fileID int) (*ModFile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/mods/%d/files/%d", curseForgeBaseURL, projectID, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var out modFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out.Data, nil
}

type modResponse struct {
	Data struct {
		LatestFiles []ModFile `json:"latestFiles"`
	} `json:"data"`
}

// GetLatestFile returns the highest-ID file CurseForge lists for
// projectID's mod, used to compute modpack_update_curseforge per
// spec.md §165.
func (c *CurseForgeClient) GetLatestFile(ctx context.Context, projectID int) (*ModFile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/mods/%d", curseForgeBaseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var out modResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data.LatestFiles) == 0 {
		return nil, fmt.Errorf("mod %d has no files", projectID)
	}

	latest := out.Data.LatestFiles[0]
	for _, f := range out.Data.LatestFiles[1:] {
		if f.ID > latest.ID {
			latest = f
		}
	}
	return &latest, nil
}

// fingerprintMatch is one element of /fingerprints' exactMatches.
type fingerprintMatch struct {
	ID   int     `json:"id"`
	File ModFile `json:"file"`
}

type fingerprintResponse struct {
	Data struct {
		ExactMatches []fingerprintMatch `json:"exactMatches"`
	} `json:"data"`
}

// MatchFingerprints resolves a batch of murmur2 fingerprints to mod files,
// per spec.md §4.7's "CurseForge by fingerprint-match endpoint".
func (c *CurseForgeClient) MatchFingerprints(ctx context.Context, fingerprints []uint32) (map[uint32]ModFile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"fingerprints": fingerprints})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, curseForgeBaseURL+"/fingerprints", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.formatError(req, resp)
	}

	var out fingerprintResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := make(map[uint32]ModFile, len(out.Data.ExactMatches))
	for _, m := range out.Data.ExactMatches {
		result[uint32(m.ID)] = m.File
	}
	return result, nil
}

func (c *CurseForgeClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *CurseForgeClient) formatError(req *http.Request, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	body := string(bodyBytes)
	if body != "" {
		return fmt.Errorf("curseforge API error: %s (url=%s body=%s)", resp.Status, req.URL.String(), body)
	}
	return fmt.Errorf("curseforge API error: %s (url=%s)", resp.Status, req.URL.String())
}
