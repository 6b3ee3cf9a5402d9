package playback

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"learnstream/server/internal/cache"
	"learnstream/server/internal/metrics"
)

type countingCache struct {
	inner Cache
	sets  atomic.Int32
	ttl   atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.sets.Add(1)
	c.ttl.Store(int64(ttl))
	return c.inner.Set(ctx, key, value, ttl)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func fixedSigner(c Cache, m *metrics.Metrics) *Signer {
	s := NewSigner(Config{Secret: "signing-secret", StreamHost: "stream.example.com"}, c, nil, m)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func TestSignURLFormatAndToken(t *testing.T) {
	s := fixedSigner(nil, nil)
	signed, err := s.Sign(context.Background(), "pb1", "42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "https" || u.Host != "stream.example.com" || u.Path != "/pb1.m3u8" {
		t.Fatalf("unexpected url %s", signed)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil || expires != 1_700_000_000+300 {
		t.Fatalf("expires=%q", u.Query().Get("expires"))
	}
	if got, want := u.Query().Get("token"), Token([]byte("signing-secret"), "pb1", expires); got != want {
		t.Fatalf("token=%q want %q", got, want)
	}
	if Token([]byte("other"), "pb1", expires) == u.Query().Get("token") {
		t.Fatalf("token must depend on secret")
	}
}

func TestSignCacheHitSkipsRecompute(t *testing.T) {
	cc := &countingCache{inner: cache.NewMemoryCache()}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := fixedSigner(cc, m)

	first, err := s.Sign(context.Background(), "pb1", "42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	s.now = func() time.Time { return time.Unix(1_700_000_060, 0) }
	second, err := s.Sign(context.Background(), "pb1", "42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first != second {
		t.Fatalf("cache hit should return the stored url verbatim")
	}
	if n := cc.sets.Load(); n != 1 {
		t.Fatalf("cache set called %d times", n)
	}
	if got := time.Duration(cc.ttl.Load()); got != DefaultCacheTTL {
		t.Fatalf("cache ttl = %s", got)
	}
	if got := testutil.ToFloat64(m.PlaybackSigns.WithLabelValues(metrics.SignHit)); got != 1 {
		t.Fatalf("hits = %v", got)
	}
	if v, ok, _ := cc.Get(context.Background(), CacheKey("42", "pb1")); !ok || v != first {
		t.Fatalf("entry not stored under signed:42:pb1")
	}
}

func TestSignConcurrentMissesCollapse(t *testing.T) {
	cc := &countingCache{inner: cache.NewMemoryCache()}
	s := fixedSigner(cc, nil)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Sign(context.Background(), "pb1", "42")
			if err != nil {
				t.Errorf("Sign: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("concurrent callers saw different urls")
		}
	}
	if n := cc.sets.Load(); n < 1 || n > 16 {
		t.Fatalf("unexpected set count %d", n)
	}
}

func TestSignDegradesOnCacheFailure(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := fixedSigner(brokenCache{}, m)
	signed, err := s.Sign(context.Background(), "pb1", "42")
	if err != nil || signed == "" {
		t.Fatalf("expected signed url despite cache failure, got %q %v", signed, err)
	}
	if got := testutil.ToFloat64(m.PlaybackSigns.WithLabelValues(metrics.SignCacheError)); got != 2 {
		t.Fatalf("cache errors = %v", got)
	}
}

func TestSignCacheTTLNeverExceedsURLTTL(t *testing.T) {
	cc := &countingCache{inner: cache.NewMemoryCache()}
	s := NewSigner(Config{Secret: "k", URLTTL: time.Minute, CacheTTL: time.Hour}, cc, nil, nil)
	if _, err := s.Sign(context.Background(), "pb1", "7"); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if got := time.Duration(cc.ttl.Load()); got != time.Minute {
		t.Fatalf("cache ttl = %s", got)
	}
}

func TestSignErrors(t *testing.T) {
	if _, err := NewSigner(Config{}, nil, nil, nil).Sign(context.Background(), "pb1", "1"); !errors.Is(err, ErrSigningNotConfigured) {
		t.Fatalf("expected ErrSigningNotConfigured, got %v", err)
	}
	s := fixedSigner(nil, nil)
	for _, id := range []string{"", "../etc", "pb 1", "pb?x"} {
		if _, err := s.Sign(context.Background(), id, "1"); !errors.Is(err, ErrInvalidPlaybackID) {
			t.Fatalf("id %q: expected ErrInvalidPlaybackID, got %v", id, err)
		}
	}
}
