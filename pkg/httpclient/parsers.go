package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfterHeader extracts a RateLimitInfo from a generic Retry-After
// header (RFC 7231 form: delay-seconds or an HTTP-date). It is the
// default HeaderParser a gateway installs when its backend sends this
// one widely-supported header and nothing provider-specific — the
// common case for a self-hosted model server such as Ollama, which has
// no per-token or per-request rate-limit headers of its own.
func ParseRetryAfterHeader(headers http.Header) RateLimitInfo {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return RateLimitInfo{}
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return RateLimitInfo{RetryAfter: time.Duration(seconds) * time.Second}
	}

	if when, err := http.ParseTime(raw); err == nil {
		if delay := time.Until(when); delay > 0 {
			return RateLimitInfo{ResetTime: when.Unix()}
		}
	}

	return RateLimitInfo{}
}
