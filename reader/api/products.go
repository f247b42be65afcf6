// Package api fetches raw product records from the remote product service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"retailflow/config"
	"retailflow/logger"
	"retailflow/models"
)

// ProductReader fetches product records over HTTP. Transport failures and
// non-2xx responses are retried with exponential backoff; a response body
// that fails to parse is returned immediately.
type ProductReader struct {
	config  *config.Config
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	sleep   func(time.Duration)
	log     *logger.Log
}

// NewProductReader creates a ProductReader from the api section of the
// configuration.
func NewProductReader(cfg *config.Config) *ProductReader {
	log := logger.GetLogger()

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.API.UserAgent != "" {
		transport = userAgentTransport{agent: cfg.API.UserAgent, base: transport}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.API.Timeout.Std(),
	}

	rl := cfg.API.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	reader := &ProductReader{
		config:  cfg,
		client:  client,
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		sleep:   time.Sleep,
		log:     log,
	}

	log.WithComponent("api_reader").WithFields(logger.Fields{
		"base_url":     reader.baseURL,
		"timeout":      cfg.API.Timeout.Std(),
		"max_attempts": cfg.API.Retry.MaxAttempts,
	}).Info("product reader initialized")

	return reader
}

// FetchProducts retrieves the full product collection. It retries transport
// level failures up to the configured attempt budget, sleeping
// base_delay * 2^attempt between attempts. The last error is returned once
// the budget is exhausted.
func (r *ProductReader) FetchProducts(ctx context.Context) ([]models.RawProduct, error) {
	log := r.log.WithComponent("api_reader").WithFields(logger.Fields{"operation": "fetch_products"})

	attempts := r.config.API.Retry.MaxAttempts
	baseDelay := r.config.API.Retry.BaseDelay.Std()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		log.WithFields(logger.Fields{"attempt": attempt + 1}).Info("fetching products from API")

		body, err := r.get(ctx, r.baseURL+"/products")
		if err != nil {
			lastErr = err
			log.WithError(err).WithFields(logger.Fields{"attempt": attempt + 1}).Warn("API request failed")
			if attempt < attempts-1 {
				r.sleep(baseDelay << attempt)
			}
			continue
		}

		var raws []models.RawProduct
		if err := json.Unmarshal(body, &raws); err != nil {
			// A malformed body is not a transient failure, do not retry.
			return nil, fmt.Errorf("failed to decode products response: %w", err)
		}

		log.WithFields(logger.Fields{"count": len(raws)}).Info("fetched products from API")
		return raws, nil
	}

	return nil, fmt.Errorf("fetching products failed after %d attempts: %w", attempts, lastErr)
}

// FetchProductByID retrieves a single product record.
func (r *ProductReader) FetchProductByID(ctx context.Context, productID int64) (models.RawProduct, error) {
	log := r.log.WithComponent("api_reader").WithFields(logger.Fields{
		"operation":  "fetch_product",
		"product_id": productID,
	})

	body, err := r.get(ctx, fmt.Sprintf("%s/products/%d", r.baseURL, productID))
	if err != nil {
		log.WithError(err).Warn("failed to fetch product")
		return models.RawProduct{}, err
	}

	var raw models.RawProduct
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.RawProduct{}, fmt.Errorf("failed to decode product response: %w", err)
	}
	return raw, nil
}

// get performs one rate-limited request and returns the response body.
// Any non-2xx status is reported as an error.
func (r *ProductReader) get(ctx context.Context, url string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
