package provider

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type options struct {
	// traceHTTP logs every API request/response pair at debug level.
	traceHTTP bool
	// transport overrides the base transport, mainly for tests.
	transport http.RoundTripper
}

type Option func(*options)

// WithHTTPTrace enables per-request API logging (the -vvv tier).
func WithHTTPTrace(enabled bool) Option {
	return func(o *options) {
		o.traceHTTP = enabled
	}
}

// WithTransport replaces the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	return o
}

// loggingRoundTripper wraps an underlying transport and emits one debug
// line per request and response, including latency.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	took := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("api request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("took", took),
			zap.Error(err))
		return resp, err
	}
	t.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", took))
	return resp, err
}

// newHTTPClient builds the HTTP client a provider talks through: optional
// request logging underneath an optional oauth2 static-token transport.
// Pass an empty token when the API client sends credentials itself, as the
// GitLab client does.
func newHTTPClient(token string, logger *zap.Logger, o *options) *http.Client {
	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.traceHTTP {
		transport = &loggingRoundTripper{base: transport, logger: logger}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	return &http.Client{Transport: transport}
}
