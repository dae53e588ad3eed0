package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"gorm.io/gorm/clause"

	"github.com/archielabs/archie/internal/database"
)

// CachingTransport is an http.RoundTripper that caches POST request/response
// pairs in a SQLite database under the cache directory, keyed by the SHA-256
// of method, URL and request body. Embedding and completion calls are pure
// functions of their request body, so replaying them from cache is safe and
// keeps repeated indexing runs cheap.
//
// Only 2xx responses are cached. Cache read and write failures are
// non-fatal; the request falls through to the inner transport.
type CachingTransport struct {
	inner http.RoundTripper
	db    database.Database
}

// cacheEntry is one cached response row.
type cacheEntry struct {
	Key        string    `gorm:"column:key;primaryKey"`
	StatusCode int       `gorm:"column:status_code"`
	Header     []byte    `gorm:"column:header"`
	Body       []byte    `gorm:"column:body"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName returns the cache table name.
func (cacheEntry) TableName() string { return "http_cache" }

// NewCachingTransport creates a CachingTransport storing its database in
// dir. If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}

	db, err := database.NewDatabase(context.Background(), "sqlite:///"+filepath.Join(dir, "httpcache.db"))
	if err != nil {
		return nil, fmt.Errorf("open http cache database: %w", err)
	}

	if err := db.GORM().AutoMigrate(&cacheEntry{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate http cache: %w", err)
	}

	return &CachingTransport{inner: inner, db: db}, nil
}

// Close releases the cache database.
func (t *CachingTransport) Close() error {
	return t.db.Close()
}

// RoundTrip implements http.RoundTripper. Requests without a body are not
// cacheable and pass straight through.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil {
		return t.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	key := cacheKey(req.Method, req.URL.String(), body)

	if resp, ok := t.readCache(req, key); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	t.writeCache(req.Context(), key, resp.StatusCode, resp.Header, respBody)

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

// cacheKey derives the cache key for a request.
func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(url))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) readCache(req *http.Request, key string) (*http.Response, bool) {
	var entry cacheEntry
	err := t.db.Session(req.Context()).Where("`key` = ?", key).First(&entry).Error
	if err != nil {
		return nil, false
	}

	var header http.Header
	if err := json.Unmarshal(entry.Header, &header); err != nil {
		return nil, false
	}

	return &http.Response{
		StatusCode: entry.StatusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}, true
}

func (t *CachingTransport) writeCache(ctx context.Context, key string, statusCode int, header http.Header, body []byte) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return
	}

	entry := cacheEntry{
		Key:        key,
		StatusCode: statusCode,
		Header:     headerJSON,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	// UpdateAll repairs entries that failed to decode on read.
	_ = t.db.Session(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
}

var _ http.RoundTripper = (*CachingTransport)(nil)
