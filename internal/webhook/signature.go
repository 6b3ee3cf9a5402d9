package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// HMACVerifier checks provider signature headers of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]". Several v1 values may be present while
// the provider rotates secrets; any match is accepted.
type HMACVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACVerifier returns a verifier for secret. A positive tolerance also
// rejects timestamps further than tolerance from now.
func NewHMACVerifier(secret string, tolerance time.Duration) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func (v *HMACVerifier) Verify(rawBody []byte, header string) bool {
	if len(v.secret) == 0 {
		return false
	}
	timestamp, candidates := parseSignatureHeader(header)
	if timestamp == "" || len(candidates) == 0 {
		return false
	}
	if v.tolerance > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		age := v.now().Sub(time.Unix(ts, 0))
		if age > v.tolerance || age < -v.tolerance {
			return false
		}
	}
	expected := []byte(Sign(v.secret, timestamp, rawBody))
	matched := false
	for _, candidate := range candidates {
		if hmac.Equal(expected, []byte(candidate)) {
			matched = true
		}
	}
	return matched
}

// Sign computes the lowercase hex HMAC-SHA256 of "timestamp.body".
func Sign(secret []byte, timestamp string, rawBody []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a header value for body; used by tests and tooling.
func SignatureHeader(secret string, ts time.Time, rawBody []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + Sign([]byte(secret), t, rawBody)
}

func parseSignatureHeader(header string) (string, []string) {
	var timestamp string
	var signatures []string
	for _, element := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(element), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = value
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	return timestamp, signatures
}

// DevModeVerifier accepts every request. It exists only for local
// development without a webhook secret and must never be wired when a
// secret is configured.
type DevModeVerifier struct {
	log *slog.Logger
}

func NewDevModeVerifier(logger *slog.Logger) *DevModeVerifier {
	return &DevModeVerifier{log: logger}
}

func (d *DevModeVerifier) Verify(rawBody []byte, header string) bool {
	d.log.Warn("webhook_signature_skipped_insecure_dev_mode",
		"body_bytes", len(rawBody),
		"has_signature_header", header != "",
	)
	return true
}
