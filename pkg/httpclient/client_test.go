package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentcore/pkg/corerrors"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5, c.maxRetries)
	assert.Equal(t, 2*time.Second, c.baseDelay)
	assert.Equal(t, 120*time.Second, c.client.Timeout)
	assert.NotNil(t, c.strategyFunc)
}

func TestNew_Options(t *testing.T) {
	c := New(
		WithMaxRetries(2),
		WithBaseDelay(1*time.Second),
		WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		WithHeaderParser(ParseRetryAfterHeader),
		WithRetryStrategy(func(int) RetryStrategy { return SmartRetry }),
	)

	assert.Equal(t, 2, c.maxRetries)
	assert.Equal(t, 1*time.Second, c.baseDelay)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
	assert.Equal(t, SmartRetry, c.strategyFunc(500))
	require.NotNil(t, c.headerParser)
}

func TestDefaultStrategy(t *testing.T) {
	tests := []struct {
		status   int
		expected RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusGatewayTimeout, ConservativeRetry},
		{http.StatusOK, NoRetry},
		{http.StatusNotFound, NoRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, DefaultStrategy(tt.status))
	}
}

func TestClient_DoSucceedsWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := c.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_DoSurfacesNetworkError(t *testing.T) {
	c := New(WithHTTPClient(&http.Client{Timeout: time.Millisecond}))
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)

	resp, err := c.Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestClient_DoRetriesConservativeUntilSuccess(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(3), WithBaseDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := c.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestClient_DoReturnsRetryExhaustedAfterConservativeCap(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// ConservativeRetry itself stops after 2 retries (3 attempts) even
	// though maxRetries allows more, so this exercises the same
	// exhaustion path as running out of maxRetries.
	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(5), WithBaseDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := c.Do(req)
	require.Error(t, err)
	assert.NotNil(t, resp)

	var exhausted *corerrors.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, http.StatusInternalServerError, exhausted.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestClient_DoReturnsRetryExhaustedAtMaxRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(2), WithBaseDelay(5*time.Millisecond), WithHeaderParser(ParseRetryAfterHeader))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := c.Do(req)
	require.Error(t, err)
	require.NotNil(t, resp)

	var exhausted *corerrors.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, http.StatusTooManyRequests, exhausted.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestClient_DoHonorsRetryAfterHeader(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(3), WithHeaderParser(ParseRetryAfterHeader))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, elapsed, 1*time.Second)
}

func TestClient_AttemptRequestClassifiesStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
		wantStr RetryStrategy
	}{
		{"success", http.StatusOK, false, NoRetry},
		{"rate_limited", http.StatusTooManyRequests, true, SmartRetry},
		{"server_error", http.StatusInternalServerError, true, ConservativeRetry},
		{"bad_request", http.StatusBadRequest, true, NoRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(WithHTTPClient(srv.Client()))
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

			resp, strategy, info, err := c.attemptRequest(req)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.wantStr, strategy)
			assert.Zero(t, info)
		})
	}
}

func TestClient_CalculateDelay(t *testing.T) {
	c := New(WithBaseDelay(1 * time.Second))

	assert.Equal(t, time.Duration(0), c.calculateDelay(NoRetry, 0, RateLimitInfo{}))

	d := c.calculateDelay(SmartRetry, 0, RateLimitInfo{})
	assert.InDelta(t, 1100*time.Millisecond, d, float64(150*time.Millisecond))

	d = c.calculateDelay(SmartRetry, 0, RateLimitInfo{RetryAfter: 5 * time.Second})
	assert.Equal(t, 5*time.Second, d)

	d = c.calculateDelay(SmartRetry, 0, RateLimitInfo{ResetTime: time.Now().Add(3 * time.Second).Unix()})
	assert.InDelta(t, 3*time.Second, d, float64(time.Second))

	assert.Equal(t, 2*time.Second, c.calculateDelay(ConservativeRetry, 0, RateLimitInfo{}))
	assert.Equal(t, 3*time.Second, c.calculateDelay(ConservativeRetry, 1, RateLimitInfo{}))
	assert.Equal(t, time.Duration(0), c.calculateDelay(ConservativeRetry, 2, RateLimitInfo{}))
}
