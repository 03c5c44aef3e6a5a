// Package places provides a client for the third-party places API. The
// pipeline uses it to resolve a provider reference to the photo URLs the
// details endpoint advertises.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/errors"
	"github.com/jtoivane/retkikartta/internal/logging"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Package-level logger specific to the places service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "places.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "places", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize places file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "places")
		closeLogger = func() error { return nil }
	}
}

const requestTimeout = 10 * time.Second

// Details is the subset of the places details payload the pipeline consumes.
type Details struct {
	Name      string   `json:"name"`
	PhotoURLs []string `json:"photoUrls"`
}

// detailsResponse mirrors the wire format of the details endpoint.
type detailsResponse struct {
	Result struct {
		Name   string `json:"name"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
	Status string `json:"status"`
}

// Client provides methods for interacting with the places API.
type Client struct {
	settings   conf.PlacesSettings
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a new places API client.
func NewClient(settings *conf.Settings) (*Client, error) {
	ps := settings.Places
	if ps.APIKey == "" {
		return nil, errors.Newf("places API key is required").
			Category(errors.CategoryConfiguration).
			Component("places").
			Build()
	}

	ttl := time.Duration(ps.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	rps := ps.RequestsPerSecond
	if rps <= 0 {
		rps = 2.0
	}

	client := &Client{
		settings: ps,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache:   cache.New(ttl, ttl*2),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		debug:   ps.Debug || settings.Debug,
	}

	logger.Info("Places client initialized",
		"base_url", ps.BaseURL,
		"cache_ttl_minutes", ps.CacheTTLMinutes,
		"requests_per_second", rps)

	return client, nil
}

// Close cleans up client resources.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing places logger: %v", err)
		}
	}
}

// PhotoSourceURL builds the provider photo endpoint URL for a reference.
func (c *Client) PhotoSourceURL(reference string) string {
	return PhotoSourceURL(reference, c.settings.APIKey, c.settings.PhotoMaxWidth)
}

// PhotoSourceURL builds the provider photo endpoint URL for a reference using
// the given API key and maximum width.
func PhotoSourceURL(reference, apiKey string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 800
	}
	q := url.Values{}
	q.Set("maxwidth", fmt.Sprintf("%d", maxWidth))
	q.Set(photoReferenceParam, reference)
	q.Set("key", apiKey)
	return fmt.Sprintf("https://%s%s?%s", providerPhotoHost, providerPhotoPath, q.Encode())
}

// GetDetails retrieves location details for a provider reference, including
// the photo URLs derived from the photo references the API returns. Responses
// are cached in memory with a TTL.
func (c *Client) GetDetails(ctx context.Context, providerRef string) (*Details, error) {
	cacheKey := fmt.Sprintf("details:%s", providerRef)

	if cached, found := c.cache.Get(cacheKey); found {
		if details, ok := cached.(*Details); ok {
			if c.debug {
				logger.Debug("Places details cache hit", "provider_ref", providerRef)
			}
			return details, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPlacesAPI).
			Component("places").
			Context("provider_ref", providerRef).
			Context("operation", "rate_limit_wait").
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("place_id", providerRef)
	q.Set("fields", "name,photos")
	q.Set("key", c.settings.APIKey)
	endpoint := fmt.Sprintf("%s/details/json?%s", c.settings.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPlacesAPI).
			Component("places").
			Context("provider_ref", providerRef).
			Build()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Component("places").
			Context("provider_ref", providerRef).
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close details response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("places details request failed with status %d", resp.StatusCode).
			Category(errors.CategoryPlacesAPI).
			Component("places").
			Context("provider_ref", providerRef).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var payload detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryPlacesAPI).
			Component("places").
			Context("provider_ref", providerRef).
			Context("operation", "decode_details").
			Build()
	}

	if payload.Status != "OK" {
		return nil, errors.Newf("places details returned status %s", payload.Status).
			Category(errors.CategoryPlacesAPI).
			Component("places").
			Context("provider_ref", providerRef).
			Build()
	}

	details := &Details{Name: payload.Result.Name}
	for _, photo := range payload.Result.Photos {
		if photo.PhotoReference == "" {
			continue
		}
		details.PhotoURLs = append(details.PhotoURLs, c.PhotoSourceURL(photo.PhotoReference))
	}

	c.cache.Set(cacheKey, details, cache.DefaultExpiration)

	if c.debug {
		logger.Debug("Places details fetched",
			"provider_ref", providerRef,
			"photos", len(details.PhotoURLs))
	}

	return details, nil
}

// PhotoURLs returns the photo URLs for a provider reference, or an empty
// slice when the location has no photos.
func (c *Client) PhotoURLs(ctx context.Context, providerRef string) ([]string, error) {
	details, err := c.GetDetails(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	return details.PhotoURLs, nil
}
