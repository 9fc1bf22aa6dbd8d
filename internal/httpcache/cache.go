// Package httpcache implements the conditional HTTP cache described in
// §4.1: a RoundTripper that sits below every outbound request made by the
// modpack materializer and loader merger, honouring Cache-Control,
// Expires, ETag and Last-Modified the same way the original
// cache_middleware.rs does.
package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nickheyer/launcherd/pkg/logger"
)

// Row is the persisted HTTP cache row named in spec.md §6 ("http_cache").
// Url is unique; a cache hit is a row lookup by exact URL string.
type Row struct {
	ID           uint   `gorm:"primarykey"`
	URL          string `gorm:"uniqueIndex;not null"`
	StatusCode   int
	Body         []byte
	ExpiresAt    *time.Time
	ETag         string
	LastModified string
}

func (Row) TableName() string { return "http_cache" }

// Transport wraps a base RoundTripper with the caching contract of §4.1.
type Transport struct {
	Base  http.RoundTripper
	DB    *gorm.DB
	Log   *logger.Logger
	clock func() time.Time
}

// New builds a caching Transport over base (http.DefaultTransport if nil).
func New(db *gorm.DB, log *logger.Logger, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, DB: db, Log: log, clock: time.Now}
}

const avoidCachingHeader = "avoid-caching"

// RoundTrip implements the §4.1 contract step by step.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(avoidCachingHeader) != "" {
		req = req.Clone(req.Context())
		req.Header.Del(avoidCachingHeader)
		return t.Base.RoundTrip(req)
	}

	if req.Method != http.MethodGet {
		return t.Base.RoundTrip(req)
	}

	url := req.URL.String()
	now := t.clock()

	var row Row
	found := t.DB.Where("url = ?", url).First(&row).Error == nil

	if found && row.ExpiresAt != nil && row.ExpiresAt.After(now) {
		return t.synthesize(req, &row), nil
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if found && rowMatchesResponse(row, resp) {
		resp.Body.Close()
		return t.synthesize(req, &row), nil
	}

	expiresAt, etag, lastModified := parseFreshness(resp.Header, now)
	if expiresAt == nil && etag == "" && lastModified == "" {
		resp.Header.Set("Cached", "false")
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Header.Set("Cached", "false")
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return resp, nil
	}

	newRow := Row{
		URL:          url,
		StatusCode:   resp.StatusCode,
		Body:         body,
		ExpiresAt:    expiresAt,
		ETag:         etag,
		LastModified: lastModified,
	}
	if err := t.store(url, newRow); err != nil && t.Log != nil {
		t.Log.Error("http cache: failed to persist row for %s: %v", url, err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Set("Cached", "false")
	resp.ContentLength = int64(len(body))
	return resp, nil
}

// store atomically deletes the prior row for url and inserts the new one.
func (t *Transport) store(url string, row Row) error {
	return t.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("url = ?", url).Delete(&Row{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func rowMatchesResponse(row Row, resp *http.Response) bool {
	if row.ETag != "" && row.ETag == resp.Header.Get("ETag") {
		return true
	}
	if row.LastModified != "" && row.LastModified == resp.Header.Get("Last-Modified") {
		return true
	}
	return false
}

func (t *Transport) synthesize(req *http.Request, row *Row) *http.Response {
	resp := &http.Response{
		Status:     strconv.Itoa(row.StatusCode) + " " + http.StatusText(row.StatusCode),
		StatusCode: row.StatusCode,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(row.Body)),
		Request:    req,
	}
	resp.Header.Set("Cached", "true")
	resp.ContentLength = int64(len(row.Body))
	return resp
}

// parseFreshness extracts expiry/etag/last-modified per §4.1 step 5.
func parseFreshness(h http.Header, now time.Time) (expiresAt *time.Time, etag, lastModified string) {
	etag = h.Get("ETag")
	lastModified = h.Get("Last-Modified")

	if cc := h.Get("Cache-Control"); cc != "" {
		if hasDirective(cc, "no-store") {
			return nil, etag, lastModified
		}
		if n, ok := maxAge(cc); ok {
			t := now.Add(time.Duration(n) * time.Second)
			return &t, etag, lastModified
		}
	}

	if exp := h.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil {
			return &t, etag, lastModified
		}
	}

	return nil, etag, lastModified
}

func hasDirective(cacheControl, directive string) bool {
	for _, part := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(part), directive) {
			return true
		}
	}
	return false
}

func maxAge(cacheControl string) (int, bool) {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "max-age="); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Migrate ensures the http_cache table exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("migrate http_cache: %w", err)
	}
	return nil
}
