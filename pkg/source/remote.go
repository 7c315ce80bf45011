package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/niels/nixie/pkg/config"
	"github.com/niels/nixie/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

var (
	// ErrUpstreamStatus is returned when the search API answers with a non-2xx status
	ErrUpstreamStatus = errors.New("upstream returned an error status")
	// ErrMissingTotal is returned when the response has no numeric pagination.total
	ErrMissingTotal = errors.New("upstream response has no pagination.total")
)

// maxResponseSize bounds how much of the upstream body is read
const maxResponseSize = 1 << 20

// RemoteTotal serves the number of records the search API reports as updated
// within a fixed time window. Only pagination.total is read; no rows are requested.
type RemoteTotal struct {
	client   *http.Client
	endpoint string
	retry    retry.Options
	logger   zerolog.Logger
}

// NewRemoteTotal creates a source polling the configured upstream
func NewRemoteTotal(cfg config.UpstreamConfig, retryOpts retry.Options, logger zerolog.Logger) (*RemoteTotal, error) {
	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme must be http or https", cfg.URL)
	}

	// Parameters already present in the configured url are kept
	query := endpoint.Query()
	// Bypass the search index cache
	query.Set("cache", "false")
	// Only pagination is needed
	query.Set("limit", "0")
	query.Set("query[range][timestamp][gte]", cfg.Since)
	query.Set("query[range][timestamp][time_zone]", cfg.TimeZone)
	endpoint.RawQuery = query.Encode()

	r := &RemoteTotal{
		client:   &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		endpoint: endpoint.String(),
		retry:    retryOpts,
		logger:   logger,
	}
	r.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying upstream poll")
	}
	return r, nil
}

// Fetch queries the upstream and returns its pagination.total
func (r *RemoteTotal) Fetch(ctx context.Context) (int64, error) {
	return retry.Do(ctx, r.poll, r.retry)
}

func (r *RemoteTotal) poll(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return parseTotal(body)
}

func parseTotal(body []byte) (int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, errors.New("upstream response is not valid JSON")
	}

	total := gjson.GetBytes(body, "pagination.total")
	if total.Type != gjson.Number {
		return 0, ErrMissingTotal
	}
	return total.Int(), nil
}
