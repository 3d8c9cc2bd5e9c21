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

const geocoderCacheTTL = 7 * 24 * time.Hour

// Geocoder is the fallback external lookup every enrichment cascade ends
// with (spec.md §4.6 Geocoder), keyed by free-text address.
type Geocoder struct {
	baseURL string
	apiKey  string
	client  httpClient
	cache   cache.Cache
	log     *zap.Logger

	warnOnce sync.Once
}

// NewGeocoder builds a Geocoder resolver.
func NewGeocoder(baseURL, apiKey string, c cache.Cache, log *zap.Logger) *Geocoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Geocoder{baseURL: baseURL, apiKey: apiKey, client: newRetryingClient(), cache: c, log: log}
}

// Geocode resolves a free-text address. The cache key is the normalized
// query (lowercased, accent-stripped, whitespace -> hyphen) per spec.md
// §4.6.
func (g *Geocoder) Geocode(ctx context.Context, addressText string) (GeocodeResult, bool) {
	if g.apiKey == "" {
		g.warnOnce.Do(func() {
			g.log.Warn("geocoder resolver disabled: no api key configured")
		})
		return GeocodeResult{}, false
	}

	key := normalizeQueryKey("geocode", addressText)
	var cached GeocodeResult
	if hit, miss := cacheGetJSON(ctx, g.cache, key, &cached); hit {
		return cached, true
	} else if miss {
		return GeocodeResult{}, false
	}

	u := fmt.Sprintf("%s?address=%s&key=%s", g.baseURL, url.QueryEscape(addressText), url.QueryEscape(g.apiKey))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return GeocodeResult{}, false
	}

	resp, err := retryableDo(ctx, g.client, req)
	if err != nil {
		g.log.Warn("geocoder lookup failed", zap.String("query", addressText), zap.Error(err))
		return GeocodeResult{}, false
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		g.cache.Set(ctx, key, cache.MissSentinel, geocoderCacheTTL)
		return GeocodeResult{}, false
	}

	var body struct {
		Results []struct {
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName string   `json:"long_name"`
				Types    []string `json:"types"`
			} `json:"address_components"`
		} `json:"results"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		g.log.Warn("geocoder response decode failed", zap.Error(err))
		return GeocodeResult{}, false
	}
	if len(body.Results) == 0 {
		g.cache.Set(ctx, key, cache.MissSentinel, geocoderCacheTTL)
		return GeocodeResult{}, false
	}

	first := body.Results[0]
	result := GeocodeResult{FormattedAddress: first.FormattedAddress}
	for _, c := range first.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "sublocality", "sublocality_level_1":
				result.Neighborhood = c.LongName
			case "route":
				result.Street = c.LongName
			case "administrative_area_level_2":
				result.City = c.LongName
			case "administrative_area_level_1":
				result.State = c.LongName
			}
		}
	}

	cacheSetJSON(ctx, g.cache, key, result, geocoderCacheTTL)
	return result, true
}
