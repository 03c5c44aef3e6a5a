// fetchguard.go: bounded, validated fetch of image bytes from the upstream
// provider. The guard classifies every failure and records it in the failure
// ledger; choosing what to serve instead is the caller's policy.
package imagepipeline

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jtoivane/retkikartta/internal/errors"
	"github.com/jtoivane/retkikartta/internal/observability/metrics"
)

const (
	// fetchTimeout bounds a single origin fetch including body read.
	fetchTimeout = 10 * time.Second

	// maxImageSize is the largest body the guard accepts.
	maxImageSize = 5 << 20 // 5 MiB
)

// Failure reason classifications.
const (
	ReasonTimeout            = "timeout"
	ReasonFetchError         = "fetch_error"
	ReasonInvalidContentType = "invalid_content_type"
	ReasonTooLarge           = "too_large"
	ReasonEmptyBody          = "empty_body"
)

// FailureRecorder records failed fetch attempts per URL.
type FailureRecorder interface {
	RecordFailedImage(imageURL, errorMessage string) error
}

// FetchResult is the classified outcome of one origin fetch.
type FetchResult struct {
	OK          bool
	Body        []byte
	ContentType string
	Reason      string // set when OK is false
}

// FetchGuard performs guarded origin fetches.
type FetchGuard struct {
	httpClient *http.Client
	ledger     FailureRecorder
	metrics    *metrics.ImagePipelineMetrics
}

// NewFetchGuard creates a guard that records failures in the given ledger.
// metrics may be nil.
func NewFetchGuard(ledger FailureRecorder, m *metrics.ImagePipelineMetrics) *FetchGuard {
	return &FetchGuard{
		httpClient: &http.Client{},
		ledger:     ledger,
		metrics:    m,
	}
}

// recordFailure books the failure and classifies the result.
func (g *FetchGuard) recordFailure(url, reason string) FetchResult {
	if g.ledger != nil {
		if err := g.ledger.RecordFailedImage(url, reason); err != nil {
			logger.Warn("Failed to record image failure",
				"url", url,
				"reason", reason,
				"error", err)
		}
	}
	if g.metrics != nil {
		g.metrics.IncrementDownloadErrors()
	}
	return FetchResult{Reason: reason}
}

// Fetch downloads one remote image with a hard timeout and validates the
// response. Every failure path records exactly one ledger entry. The guard
// never substitutes fallback content.
func (g *FetchGuard) Fetch(ctx context.Context, url string) FetchResult {
	reqID := uuid.New().String()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		logger.Debug("Invalid fetch request",
			"request_id", reqID,
			"url", url,
			"error", err)
		return g.recordFailure(url, ReasonFetchError)
	}

	startTime := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		reason := ReasonFetchError
		if errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() != nil {
			reason = ReasonTimeout
		}
		logger.Debug("Origin fetch failed",
			"request_id", reqID,
			"url", url,
			"reason", reason,
			"error", err)
		return g.recordFailure(url, reason)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close origin response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := "http_" + strconv.Itoa(resp.StatusCode)
		logger.Debug("Origin returned non-2xx status",
			"request_id", reqID,
			"url", url,
			"status", resp.StatusCode)
		return g.recordFailure(url, reason)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		logger.Debug("Origin returned non-image content type",
			"request_id", reqID,
			"url", url,
			"content_type", contentType)
		return g.recordFailure(url, ReasonInvalidContentType)
	}

	if resp.ContentLength > maxImageSize {
		return g.recordFailure(url, ReasonTooLarge)
	}

	// Read one byte past the limit to detect oversized bodies without an
	// upfront Content-Length.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		reason := ReasonFetchError
		if errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() != nil {
			reason = ReasonTimeout
		}
		logger.Debug("Failed to read origin response body",
			"request_id", reqID,
			"url", url,
			"error", err)
		return g.recordFailure(url, reason)
	}

	if len(body) > maxImageSize {
		return g.recordFailure(url, ReasonTooLarge)
	}
	if len(body) == 0 {
		return g.recordFailure(url, ReasonEmptyBody)
	}

	if g.metrics != nil {
		g.metrics.ObserveDownloadDuration(time.Since(startTime).Seconds())
		g.metrics.IncrementImageDownloads()
	}

	logger.Debug("Origin fetch succeeded",
		"request_id", reqID,
		"url", url,
		"content_type", contentType,
		"size", len(body))

	return FetchResult{
		OK:          true,
		Body:        body,
		ContentType: contentType,
	}
}

// FetchValidated wraps Fetch in an error-returning shape for callers that
// only care about success.
func (g *FetchGuard) FetchValidated(ctx context.Context, url string) ([]byte, string, error) {
	result := g.Fetch(ctx, url)
	if !result.OK {
		return nil, "", errors.Newf("image fetch failed: %s", result.Reason).
			Category(errors.CategoryImageFetch).
			Component("imagepipeline").
			Context("url", url).
			Context("reason", result.Reason).
			Build()
	}
	return result.Body, result.ContentType, nil
}
