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

const registryCacheTTL = 30 * 24 * time.Hour

// Registry resolves the authoritative list of municipalities for a
// Brazilian state (spec.md §4.6 Registry), used by the City enrichment
// cascade's Dice-similarity match.
type Registry struct {
	baseURL string
	apiKey  string
	client  httpClient
	cache   cache.Cache
	log     *zap.Logger

	warnOnce sync.Once
}

// NewRegistry builds a Registry resolver. apiKey may be empty, in which
// case every call degrades to a miss and a single warning is logged.
func NewRegistry(baseURL, apiKey string, c cache.Cache, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{baseURL: baseURL, apiKey: apiKey, client: newRetryingClient(), cache: c, log: log}
}

// MunicipalitiesByState returns every registered municipality for the
// given state code, cached for 30 days (spec.md §4.6).
func (r *Registry) MunicipalitiesByState(ctx context.Context, stateCode string) ([]Municipality, bool) {
	if r.apiKey == "" {
		r.warnOnce.Do(func() {
			r.log.Warn("registry resolver disabled: no api key configured")
		})
		return nil, false
	}

	key := "registry:" + stateCode
	var cached []Municipality
	if hit, miss := cacheGetJSON(ctx, r.cache, key, &cached); hit {
		return cached, true
	} else if miss {
		return nil, false
	}

	u := fmt.Sprintf("%s/municipios?uf=%s", r.baseURL, url.QueryEscape(stateCode))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := retryableDo(ctx, r.client, req)
	if err != nil {
		r.log.Warn("registry lookup failed", zap.String("state", stateCode), zap.Error(err))
		return nil, false
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		r.cache.Set(ctx, key, cache.MissSentinel, registryCacheTTL)
		return nil, false
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		r.log.Warn("registry lookup returned unexpected status", zap.Int("status", resp.StatusCode))
		return nil, false
	}

	var body []struct {
		ID   string `json:"id"`
		Name string `json:"nome"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		r.log.Warn("registry response decode failed", zap.Error(err))
		return nil, false
	}

	out := make([]Municipality, 0, len(body))
	for _, m := range body {
		out = append(out, Municipality{ID: m.ID, Name: m.Name})
	}

	cacheSetJSON(ctx, r.cache, key, out, registryCacheTTL)
	return out, true
}
