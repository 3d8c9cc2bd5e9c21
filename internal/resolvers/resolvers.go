// Package resolvers implements the four thin external adapters the
// Enricher cascades through (spec.md §4.6): Registry, PostalCEP,
// Geocoder and Places. Each is a plain net/http client with a bounded
// per-request timeout and a cenkalti/backoff retry for transient
// transport errors only (grounded on the teacher's
// internal/storage/dolt/store.go newServerRetryBackoff/isRetryableError
// pattern, adapted from database reconnection to HTTP transport).
package resolvers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/cache"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/normalizer"
)

const requestTimeout = 5 * time.Second

// Municipality is one Registry entry.
type Municipality struct {
	ID   string
	Name string
}

// PostalAddress is a PostalCEP hit.
type PostalAddress struct {
	Street       string
	Neighborhood string
	City         string
	State        string
}

// GeocodeResult is a Geocoder generic lookup hit.
type GeocodeResult struct {
	Neighborhood      string
	Street            string
	City              string
	State             string
	FormattedAddress string
}

// PlaceResult is a Places find-by-text hit.
type PlaceResult struct {
	Name             string
	FormattedAddress string
}

// httpClient is the minimal surface resolvers need, letting tests
// substitute a fake transport without a live network.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func newRetryingClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func retryableDo(ctx context.Context, client httpClient, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = requestTimeout * 3

	var resp *http.Response
	err := backoff.Retry(func() error {
		var doErr error
		resp, doErr = client.Do(req.WithContext(ctx))
		if doErr != nil {
			if isRetryableTransportError(doErr) {
				return doErr
			}
			return backoff.Permanent(doErr)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	return resp, err
}

// isRetryableTransportError reports whether err looks like a transient
// connection problem rather than a permanent failure (grounded on the
// teacher's isRetryableError string-matching approach).
func isRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "broken pipe", "timeout", "temporary failure", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// sanitizePostalCode digit-strips a postal code input; invalid-length
// inputs return false so the caller can skip the network call entirely
// (spec.md §4.6 "invalid-length inputs return miss without a network
// call").
func sanitizePostalCode(code string, expectedLen int) (string, bool) {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != expectedLen {
		return "", false
	}
	return digits, true
}

// normalizeQueryKey folds q for use as a cache key (spec.md §4.6
// Geocoder/Places: "lowercased, accent-stripped, whitespace->hyphen").
func normalizeQueryKey(prefix, q string) string {
	folded := normalizer.Fold(q)
	return prefix + ":" + strings.ReplaceAll(folded, " ", "-")
}

func cacheGetJSON[T any](ctx context.Context, c cache.Cache, key string, out *T) (hit bool, miss bool) {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false, false
	}
	if cache.IsMiss(raw, ok) {
		return false, true
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, false
	}
	return true, false
}

func cacheSetJSON(ctx context.Context, c cache.Cache, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, string(raw), ttl)
}
