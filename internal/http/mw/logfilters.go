package mw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	logfilter "github.com/jmylchreest/slog-logfilter"

	"github.com/jmylchreest/vocalis-api/internal/logging"
)

// ObjectGetter is the part of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LogFiltersConfig holds configuration for the log filters loader.
type LogFiltersConfig struct {
	Client       ObjectGetter
	Bucket       string
	Key          string        // default: "config/logfilters.json"
	CacheTTL     time.Duration // refresh interval, default 5m
	ErrorBackoff time.Duration // wait after a failed fetch, default 1m
	Logger       *slog.Logger
}

// refreshResult describes what a single refresh did.
type refreshResult string

const (
	refreshLoaded    refreshResult = "loaded"
	refreshUnchanged refreshResult = "unchanged"
	refreshMissing   refreshResult = "missing"
	refreshBackoff   refreshResult = "backoff"
	refreshFailed    refreshResult = "failed"
)

// LogFiltersLoader polls a JSON filter list in S3 and applies it to the
// process logger. A failed fetch keeps the filters already in place.
type LogFiltersLoader struct {
	client       ObjectGetter
	bucket       string
	key          string
	cacheTTL     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
	apply        func([]logfilter.LogFilter)
	now          func() time.Time

	mu          sync.RWMutex
	etag        string
	lastFetch   time.Time
	lastCheck   time.Time
	lastError   time.Time
	initialized bool
	filterCount int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLogFiltersLoader creates a new log filters loader.
func NewLogFiltersLoader(cfg LogFiltersConfig) *LogFiltersLoader {
	if cfg.Key == "" {
		cfg.Key = "config/logfilters.json"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LogFiltersLoader{
		client:       cfg.Client,
		bucket:       cfg.Bucket,
		key:          cfg.Key,
		cacheTTL:     cfg.CacheTTL,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger.With("component", "logfilters"),
		apply:        logging.SetFilters,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start fetches the filters once and then refreshes them every CacheTTL
// until Stop is called or ctx ends.
func (l *LogFiltersLoader) Start(ctx context.Context) {
	if l.client == nil {
		l.logger.Info("log filters loader disabled (no S3 client)")
		return
	}

	l.refresh(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.refresh(ctx)
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	l.logger.Info("log filters loader started", "bucket", l.bucket, "key", l.key, "cache_ttl", l.cacheTTL.String())
}

// Stop stops the periodic refresh. Safe to call more than once.
func (l *LogFiltersLoader) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

func (l *LogFiltersLoader) refresh(ctx context.Context) refreshResult {
	l.mu.RLock()
	inBackoff := !l.lastError.IsZero() && l.now().Sub(l.lastError) < l.errorBackoff
	etag := l.etag
	l.mu.RUnlock()
	if inBackoff {
		return refreshBackoff
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	}
	if etag != "" {
		input.IfNoneMatch = aws.String(`"` + etag + `"`)
	}

	resp, err := l.client.GetObject(ctx, input)
	if err != nil {
		return l.fetchError(err)
	}
	defer resp.Body.Close()

	var filters []logfilter.LogFilter
	if err := json.NewDecoder(resp.Body).Decode(&filters); err != nil {
		l.markError()
		l.logger.Error("failed to parse log filters JSON", "error", err)
		return refreshFailed
	}
	l.apply(filters)

	newEtag := strings.Trim(aws.ToString(resp.ETag), `"`)
	now := l.now()
	l.mu.Lock()
	previous := l.etag
	l.initialized = true
	l.lastFetch = now
	l.lastCheck = now
	l.lastError = time.Time{}
	l.etag = newEtag
	l.filterCount = len(filters)
	l.mu.Unlock()

	active := 0
	for _, f := range filters {
		if f.IsActive() {
			active++
		}
	}
	l.logger.Info("log filters loaded",
		"etag", newEtag,
		"previous_etag", previous,
		"total_filters", len(filters),
		"active_filters", active,
	)
	return refreshLoaded
}

func (l *LogFiltersLoader) fetchError(err error) refreshResult {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		l.markError()
		l.logger.Info("log filters file not found, using defaults", "bucket", l.bucket, "key", l.key)
		return refreshMissing
	}

	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() == "NotModified" {
		l.mu.Lock()
		l.lastCheck = l.now()
		l.mu.Unlock()
		return refreshUnchanged
	}

	l.markError()
	l.logger.Error("failed to fetch log filters", "error", err, "bucket", l.bucket, "key", l.key)
	return refreshFailed
}

func (l *LogFiltersLoader) markError() {
	now := l.now()
	l.mu.Lock()
	l.initialized = true
	l.lastCheck = now
	l.lastError = now
	l.mu.Unlock()
}

// LogFiltersStats contains statistics about the log filters loader.
type LogFiltersStats struct {
	Initialized bool      `json:"initialized"`
	FilterCount int       `json:"filter_count"`
	Etag        string    `json:"etag"`
	LastFetch   time.Time `json:"last_fetch"`
	LastCheck   time.Time `json:"last_check"`
	CacheTTL    string    `json:"cache_ttl"`
}

// Stats returns current loader statistics.
func (l *LogFiltersLoader) Stats() LogFiltersStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LogFiltersStats{
		Initialized: l.initialized,
		FilterCount: l.filterCount,
		Etag:        l.etag,
		LastFetch:   l.lastFetch,
		LastCheck:   l.lastCheck,
		CacheTTL:    l.cacheTTL.String(),
	}
}
