package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3LoaderConfig configures an S3-backed config loader.
type S3LoaderConfig struct {
	S3Client     *s3.Client
	Bucket       string
	Key          string
	CacheTTL     time.Duration // How often to check for updates (default: 5 min)
	ErrorBackoff time.Duration // How long to wait after an error (default: 1 min)
	Logger       *slog.Logger
}

// S3LoadResult is the outcome of one fetch attempt.
type S3LoadResult struct {
	Data       []byte // Raw object bytes
	NotChanged bool   // The stored etag still matched (304)
}

// S3Loader fetches a single config object from S3 with etag caching
// and error backoff. A missing object is not an error; callers keep
// their built-in defaults.
type S3Loader struct {
	client *s3.Client
	bucket string
	key    string

	cacheTTL     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	etag      string
	lastCheck time.Time
	lastError time.Time
	checked   bool // at least one fetch attempt completed
	inflight  bool
}

// NewS3Loader creates a new S3 loader with the given config.
func NewS3Loader(cfg S3LoaderConfig) *S3Loader {
	l := &S3Loader{
		client:       cfg.S3Client,
		bucket:       cfg.Bucket,
		key:          cfg.Key,
		cacheTTL:     cfg.CacheTTL,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger,
	}
	if l.cacheTTL == 0 {
		l.cacheTTL = 5 * time.Minute
	}
	if l.errorBackoff == 0 {
		l.errorBackoff = 1 * time.Minute
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// IsEnabled returns true if S3 is configured.
func (l *S3Loader) IsEnabled() bool {
	return l.client != nil
}

// NeedsRefresh reports whether a fetch attempt is due.
func (l *S3Loader) NeedsRefresh() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inflight {
		return false
	}
	if !l.lastError.IsZero() && time.Since(l.lastError) < l.errorBackoff {
		return false
	}
	return !l.checked || time.Since(l.lastCheck) > l.cacheTTL
}

// Fetch retrieves the object from S3. Returns (nil, nil) when S3 is not
// configured, the object does not exist, or another fetch is already
// running. A 304 comes back as NotChanged so callers can bump their
// freshness clock without reparsing.
func (l *S3Loader) Fetch(ctx context.Context) (*S3LoadResult, error) {
	if l.client == nil {
		return nil, nil
	}

	l.mu.Lock()
	if l.inflight || (l.checked && time.Since(l.lastCheck) < l.cacheTTL) {
		l.mu.Unlock()
		return nil, nil
	}
	l.inflight = true
	etag := l.etag
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inflight = false
		l.mu.Unlock()
	}()

	input := &s3.GetObjectInput{
		Bucket: &l.bucket,
		Key:    &l.key,
	}
	if etag != "" {
		input.IfNoneMatch = aws.String(`"` + etag + `"`)
	}

	resp, err := l.client.GetObject(ctx, input)
	if err != nil {
		var apiErr interface{ ErrorCode() string }
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotModified" {
			l.mu.Lock()
			l.lastCheck = time.Now()
			l.mu.Unlock()
			l.logger.Debug("S3 config unchanged", "key", l.key, "etag", etag)
			return &S3LoadResult{NotChanged: true}, nil
		}
		return nil, l.recordFetchError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		l.markError()
		l.logger.Error("failed to read S3 config body", "error", err, "key", l.key)
		return nil, err
	}

	l.mu.Lock()
	l.checked = true
	l.lastCheck = time.Now()
	l.lastError = time.Time{}
	if resp.ETag != nil {
		l.etag = strings.Trim(*resp.ETag, `"`)
	}
	l.mu.Unlock()

	l.logger.Debug("S3 config fetched",
		"bucket", l.bucket,
		"key", l.key,
		"size", len(data),
	)
	return &S3LoadResult{Data: data}, nil
}

// recordFetchError classifies a GetObject failure. NoSuchKey is an
// expected outcome, everything else starts the error backoff.
func (l *S3Loader) recordFetchError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		l.mu.Lock()
		firstCheck := !l.checked
		l.checked = true
		l.lastCheck = time.Now()
		l.lastError = time.Now()
		l.mu.Unlock()
		if firstCheck {
			l.logger.Debug("S3 config object not found, using defaults",
				"bucket", l.bucket,
				"key", l.key,
			)
		}
		return nil
	}

	l.markError()
	l.logger.Error("failed to fetch S3 config",
		"error", err,
		"bucket", l.bucket,
		"key", l.key,
	)
	return err
}

func (l *S3Loader) markError() {
	l.mu.Lock()
	l.checked = true
	l.lastError = time.Now()
	l.mu.Unlock()
}
