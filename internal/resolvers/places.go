package resolvers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/cache"
)

const placesCacheTTL = 7 * 24 * time.Hour

// Places finds a condominium or building by free text (spec.md §4.6
// Places "find-by-text"), used by the Condo enrichment cascade before it
// falls back to the generic Geocoder.
type Places struct {
	baseURL string
	apiKey  string
	client  httpClient
	cache   cache.Cache
	log     *zap.Logger

	warnOnce sync.Once
}

// NewPlaces builds a Places resolver.
func NewPlaces(baseURL, apiKey string, c cache.Cache, log *zap.Logger) *Places {
	if log == nil {
		log = zap.NewNop()
	}
	return &Places{baseURL: baseURL, apiKey: apiKey, client: newRetryingClient(), cache: c, log: log}
}

// FindByText resolves a free-text query to a single best place match.
func (p *Places) FindByText(ctx context.Context, query string) (PlaceResult, bool) {
	if p.apiKey == "" {
		p.warnOnce.Do(func() {
			p.log.Warn("places resolver disabled: no api key configured")
		})
		return PlaceResult{}, false
	}

	key := normalizeQueryKey("places", query)
	var cached PlaceResult
	if hit, miss := cacheGetJSON(ctx, p.cache, key, &cached); hit {
		return cached, true
	} else if miss {
		return PlaceResult{}, false
	}

	u := fmt.Sprintf("%s?input=%s&inputtype=textquery&fields=name,formatted_address&key=%s",
		p.baseURL, url.QueryEscape(query), url.QueryEscape(p.apiKey))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return PlaceResult{}, false
	}

	resp, err := retryableDo(ctx, p.client, req)
	if err != nil {
		p.log.Warn("places lookup failed", zap.String("query", query), zap.Error(err))
		return PlaceResult{}, false
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		p.cache.Set(ctx, key, cache.MissSentinel, placesCacheTTL)
		return PlaceResult{}, false
	}

	var body struct {
		Candidates []struct {
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"candidates"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		p.log.Warn("places response decode failed", zap.Error(err))
		return PlaceResult{}, false
	}
	if len(body.Candidates) == 0 {
		p.cache.Set(ctx, key, cache.MissSentinel, placesCacheTTL)
		return PlaceResult{}, false
	}

	result := PlaceResult{Name: body.Candidates[0].Name, FormattedAddress: body.Candidates[0].FormattedAddress}
	cacheSetJSON(ctx, p.cache, key, result, placesCacheTTL)
	return result, true
}
