// ABOUTME: Direct report fetch with linear retry against the primary and latest-report endpoints.
// ABOUTME: Used when the stream finished or failed without delivering a report.
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/2389-research/mdtview/report"
)

// maxReportBody bounds a fetched report.
const maxReportBody = 32 << 20

// FetchPolicy bounds FetchReport retries per endpoint.
type FetchPolicy struct {
	// Attempts per endpoint.
	Attempts int
	// Step is the linear delay unit: retry n waits n*Step.
	Step time.Duration
}

// DefaultFetchPolicy returns 3 attempts per endpoint with a 1s step.
func DefaultFetchPolicy() FetchPolicy {
	return FetchPolicy{Attempts: 3, Step: time.Second}
}

// Delay returns the wait before retry n (n >= 1).
func (p FetchPolicy) Delay(n int) time.Duration {
	return time.Duration(n) * p.Step
}

// FetchReport retrieves the report for runID, first from /api/report then
// from /api/latest-report. Total failure returns an error wrapping
// ErrReportUnavailable and the last underlying error.
func (c *Client) FetchReport(ctx context.Context, runID string, p FetchPolicy) (*report.Report, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var lastErr error
	for _, prefix := range []string{pathReport, pathLatestReport} {
		target := c.runURL(prefix, runID)
		for attempt := 1; attempt <= p.Attempts; attempt++ {
			if attempt > 1 {
				if err := sleep(ctx, p.Delay(attempt-1)); err != nil {
					return nil, err
				}
			}
			r, err := c.fetchOnce(ctx, target)
			if err == nil {
				log.Printf("client event=report_fetched run_id=%s endpoint=%s attempt=%d", runID, prefix, attempt)
				return r, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Printf("client event=fetch_failed run_id=%s endpoint=%s attempt=%d err=%q", runID, prefix, attempt, err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrReportUnavailable, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, target string) (*report.Report, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp, http.StatusText(resp.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBody))
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return report.Decode(raw)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
