package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

func WrapRoundTripper(base http.RoundTripper, tracePropagationTargets []string) http.RoundTripper {
	return sentryhttpclient.NewSentryRoundTripper(
		base,
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
}

// NewHTTPClient returns a client instrumented for outbound calls to the rate
// provider and catalog hosts.
func NewHTTPClient(timeout time.Duration, tracePropagationTargets []string) *http.Client {
	client := &http.Client{
		Transport: WrapRoundTripper(http.DefaultTransport, tracePropagationTargets),
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
