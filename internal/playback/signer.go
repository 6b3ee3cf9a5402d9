package playback

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"learnstream/server/internal/metrics"
)

var (
	ErrSigningNotConfigured = errors.New("playback signing secret not configured")
	ErrInvalidPlaybackID    = errors.New("invalid playback id")
)

const (
	DefaultURLTTL   = 5 * time.Minute
	DefaultCacheTTL = 4 * time.Minute
)

// Cache is the subset of a TTL cache the signer needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Config struct {
	Secret     string
	StreamHost string
	URLTTL     time.Duration
	CacheTTL   time.Duration
}

// Signer issues time-limited playback URLs and caches them per user.
type Signer struct {
	secret     []byte
	streamHost string
	urlTTL     time.Duration
	cacheTTL   time.Duration
	cache      Cache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	group      singleflight.Group
}

func NewSigner(cfg Config, cache Cache, logger *slog.Logger, m *metrics.Metrics) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	urlTTL := cfg.URLTTL
	if urlTTL <= 0 {
		urlTTL = DefaultURLTTL
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if cacheTTL > urlTTL {
		cacheTTL = urlTTL
	}
	host := strings.TrimRight(strings.TrimPrefix(strings.TrimPrefix(cfg.StreamHost, "https://"), "http://"), "/")
	if host == "" {
		host = "stream.mux.com"
	}
	return &Signer{
		secret:     []byte(cfg.Secret),
		streamHost: host,
		urlTTL:     urlTTL,
		cacheTTL:   cacheTTL,
		cache:      cache,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// CacheKey is the cache slot for a user's URL to one playback id.
func CacheKey(userID, playbackID string) string {
	return "signed:" + userID + ":" + playbackID
}

// Token computes the URL token for playbackID valid until expires.
func Token(secret []byte, playbackID string, expires int64) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(playbackID + ":" + strconv.FormatInt(expires, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign returns a cached URL for (userID, playbackID) when one is live,
// otherwise signs a fresh one. Cache failures are logged and skipped.
func (s *Signer) Sign(ctx context.Context, playbackID, userID string) (string, error) {
	if len(s.secret) == 0 {
		s.metrics.ObservePlaybackSign(metrics.SignFailed)
		return "", ErrSigningNotConfigured
	}
	if !validPlaybackID(playbackID) {
		s.metrics.ObservePlaybackSign(metrics.SignFailed)
		return "", ErrInvalidPlaybackID
	}
	key := CacheKey(userID, playbackID)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.ObservePlaybackSign(metrics.SignCacheError)
			s.logger.Warn("playback_cache_read_failed", "key", key, "error", err.Error())
		case ok:
			s.metrics.ObservePlaybackSign(metrics.SignHit)
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		signed := s.build(playbackID)
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, signed, s.cacheTTL); err != nil {
				s.metrics.ObservePlaybackSign(metrics.SignCacheError)
				s.logger.Warn("playback_cache_write_failed", "key", key, "error", err.Error())
			}
		}
		return signed, nil
	})
	if err != nil {
		return "", err
	}
	s.metrics.ObservePlaybackSign(metrics.SignMiss)
	return v.(string), nil
}

func (s *Signer) build(playbackID string) string {
	expires := s.now().Add(s.urlTTL).Unix()
	return fmt.Sprintf("https://%s/%s.m3u8?token=%s&expires=%d",
		s.streamHost, url.PathEscape(playbackID), Token(s.secret, playbackID, expires), expires)
}

func validPlaybackID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
