package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewHTTPClient returns a resty client suited to artifact downloads.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	} else {
		c.SetTimeout(30 * time.Second)
	}
	c.SetRetryCount(2)
	c.SetRetryWaitTime(time.Second)
	return c
}

// LoadFromURL downloads the artifact at url into memory and runs the
// strategy chain over it. Fetch failures produce a failed Outcome.
func (l *Loader) LoadFromURL(ctx context.Context, url string) Outcome {
	body, err := l.fetch(ctx, url)
	if err != nil {
		out := Outcome{Source: url, Attempts: []StrategyError{{Strategy: "fetch", Err: err}}}
		l.reportExhausted(out)
		return out
	}

	return l.loadStream(url, bytes.NewReader(body))
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("no artifact url configured")
	}

	resp, err := l.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artifact: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("artifact server returned status %d", resp.StatusCode())
	}
	if l.maxBytes > 0 && int64(len(resp.Body())) > l.maxBytes {
		return nil, fmt.Errorf("artifact is %d bytes, limit is %d", len(resp.Body()), l.maxBytes)
	}
	return resp.Body(), nil
}
