package mw

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	logfilter "github.com/jmylchreest/slog-logfilter"
)

type notModifiedErr struct{}

func (notModifiedErr) Error() string     { return "not modified" }
func (notModifiedErr) ErrorCode() string { return "NotModified" }

// fakeGetter serves one canned response per call.
type fakeGetter struct {
	mu      sync.Mutex
	bodies  []string
	etags   []string
	errs    []error
	inputs  []*s3.GetObjectInput
	callIdx int
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.callIdx
	f.callIdx++
	f.inputs = append(f.inputs, in)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.bodies[i])),
		ETag: aws.String(`"` + f.etags[i] + `"`),
	}, nil
}

func newTestLoader(g *fakeGetter) (*LogFiltersLoader, *[]logfilter.LogFilter, *time.Time) {
	var applied []logfilter.LogFilter
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	l := NewLogFiltersLoader(LogFiltersConfig{Client: g, Bucket: "cfg"})
	l.apply = func(f []logfilter.LogFilter) { applied = f }
	l.now = func() time.Time { return now }
	return l, &applied, &now
}

// ========================================
// Construction Tests
// ========================================

func TestNewLogFiltersLoader_Defaults(t *testing.T) {
	l := NewLogFiltersLoader(LogFiltersConfig{})
	if l.key != "config/logfilters.json" {
		t.Errorf("key = %q", l.key)
	}
	if l.cacheTTL != 5*time.Minute {
		t.Errorf("cacheTTL = %v, want 5m", l.cacheTTL)
	}
	if l.errorBackoff != time.Minute {
		t.Errorf("errorBackoff = %v, want 1m", l.errorBackoff)
	}
	if l.logger == nil {
		t.Error("logger should default")
	}

	// No client: Start is a no-op and Stop must not block.
	l.Start(context.Background())
	l.Stop()
	l.Stop()
}

// ========================================
// refresh Tests
// ========================================

func TestLogFiltersLoader_Refresh(t *testing.T) {
	g := &fakeGetter{
		bodies: []string{`[{},{}]`, "", `[{}]`},
		etags:  []string{"v1", "", "v2"},
		errs:   []error{nil, notModifiedErr{}, nil},
	}
	l, applied, _ := newTestLoader(g)
	ctx := context.Background()

	if got := l.refresh(ctx); got != refreshLoaded {
		t.Fatalf("first refresh = %q, want loaded", got)
	}
	if len(*applied) != 2 {
		t.Errorf("applied %d filters, want 2", len(*applied))
	}
	stats := l.Stats()
	if !stats.Initialized || stats.Etag != "v1" || stats.FilterCount != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if got := l.refresh(ctx); got != refreshUnchanged {
		t.Errorf("second refresh = %q, want unchanged", got)
	}
	if aws.ToString(g.inputs[1].IfNoneMatch) != `"v1"` {
		t.Errorf("IfNoneMatch = %q, want quoted etag", aws.ToString(g.inputs[1].IfNoneMatch))
	}

	if got := l.refresh(ctx); got != refreshLoaded {
		t.Errorf("third refresh = %q, want loaded", got)
	}
	if l.Stats().Etag != "v2" || len(*applied) != 1 {
		t.Errorf("stats after update = %+v", l.Stats())
	}
}

func TestLogFiltersLoader_ErrorBackoff(t *testing.T) {
	g := &fakeGetter{
		bodies: []string{"", `[{}]`},
		etags:  []string{"", "v1"},
		errs:   []error{errors.New("connection reset"), nil},
	}
	l, applied, now := newTestLoader(g)
	ctx := context.Background()

	if got := l.refresh(ctx); got != refreshFailed {
		t.Fatalf("refresh = %q, want failed", got)
	}
	if got := l.refresh(ctx); got != refreshBackoff {
		t.Errorf("refresh during backoff = %q, want backoff", got)
	}
	if g.callIdx != 1 {
		t.Errorf("GetObject called %d times during backoff, want 1", g.callIdx)
	}

	*now = now.Add(2 * time.Minute)
	if got := l.refresh(ctx); got != refreshLoaded {
		t.Errorf("refresh after backoff = %q, want loaded", got)
	}
	if len(*applied) != 1 {
		t.Errorf("applied %d filters, want 1", len(*applied))
	}
}

func TestLogFiltersLoader_MissingAndInvalid(t *testing.T) {
	t.Run("missing object", func(t *testing.T) {
		g := &fakeGetter{bodies: []string{""}, etags: []string{""}, errs: []error{&types.NoSuchKey{}}}
		l, applied, _ := newTestLoader(g)
		if got := l.refresh(context.Background()); got != refreshMissing {
			t.Errorf("refresh = %q, want missing", got)
		}
		if *applied != nil {
			t.Error("filters should not be applied")
		}
		if !l.Stats().Initialized {
			t.Error("loader should be initialized after a missing file")
		}
	})

	t.Run("invalid json keeps existing filters", func(t *testing.T) {
		g := &fakeGetter{bodies: []string{"not json"}, etags: []string{"v1"}}
		l, applied, _ := newTestLoader(g)
		if got := l.refresh(context.Background()); got != refreshFailed {
			t.Errorf("refresh = %q, want failed", got)
		}
		if *applied != nil {
			t.Error("filters should not be applied")
		}
		if l.Stats().Etag != "" {
			t.Error("etag should not advance on parse failure")
		}
	})
}
