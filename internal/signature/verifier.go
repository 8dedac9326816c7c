// Package signature verifies webhook authenticity for each provider scheme.
// All verifiers fail closed: blank secrets, blank headers and malformed input
// reject rather than error out, and comparisons are constant-time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the replay window for timestamped signatures.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMalformedHeader means the signature header could not be parsed at
	// all. Distinct from a mismatch so callers can log the difference.
	ErrMalformedHeader = errors.New("malformed signature header")
	// ErrTimestampOutsideTolerance means the signed timestamp is older or
	// newer than the replay window allows.
	ErrTimestampOutsideTolerance = errors.New("signature timestamp outside tolerance")
	// ErrNoMatchingSignature means the header parsed but no candidate
	// signature matched the recomputed digest.
	ErrNoMatchingSignature = errors.New("no matching signature")
)

// VerifyHexHMAC checks a "sha256=<hexdigest>" header against an HMAC-SHA256
// of the raw body. Any scheme tag other than sha256 is rejected.
func VerifyHexHMAC(secret, header string, body []byte) bool {
	if secret == "" || header == "" {
		return false
	}
	scheme, digest, ok := strings.Cut(header, "=")
	if !ok || scheme != "sha256" {
		return false
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// VerifyBase64HMAC checks a bare Base64-encoded HMAC-SHA256 of the raw body.
func VerifyBase64HMAC(secret, header string, body []byte) bool {
	if secret == "" || header == "" {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// VerifySharedSecret compares a plain shared-secret header. Used only for
// providers without a native signing mechanism. Mismatched lengths reject
// immediately; equal-length values compare in constant time.
func VerifySharedSecret(secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	if len(secret) != len(header) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(header)) == 1
}

// VerifyTimestamped checks a comma-separated "t=<unix>,v1=<hex>[,v1=...]"
// header. The digest is HMAC-SHA256 over "t=<ts>.<body>"; any v1 value may
// match, and |now-ts| must be within tolerance.
func VerifyTimestamped(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	if secret == "" || header == "" {
		return ErrMalformedHeader
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var ts int64 = -1
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp %q", ErrMalformedHeader, v)
			}
			ts = n
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if ts < 0 {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedHeader)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: missing v1 signature", ErrMalformedHeader)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return ErrTimestampOutsideTolerance
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "t=%d.", ts)
	mac.Write(body)
	want := mac.Sum(nil)

	for _, sig := range candidates {
		if hmac.Equal(sig, want) {
			return nil
		}
	}
	return ErrNoMatchingSignature
}

// SignHexHMAC produces a header VerifyHexHMAC accepts. Used by tests and by
// the local gateway's outbound tooling.
func SignHexHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// SignBase64HMAC produces a header VerifyBase64HMAC accepts.
func SignBase64HMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignTimestamped produces a header VerifyTimestamped accepts for ts.
func SignTimestamped(secret string, body []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "t=%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
