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

const (
	postalCodeDigits = 8
	postalCacheTTL   = 7 * 24 * time.Hour
)

// PostalCEP resolves a Brazilian postal code to its street, neighborhood,
// city and state (spec.md §4.6 PostalCEP), used by the Neighborhood
// majority-vote cascade and the Street direct-match cascade.
type PostalCEP struct {
	baseURL string
	client  httpClient
	cache   cache.Cache
	log     *zap.Logger

	warnOnce sync.Once
}

// NewPostalCEP builds a PostalCEP resolver. It requires no credential;
// baseURL empty disables the resolver (logged once).
func NewPostalCEP(baseURL string, c cache.Cache, log *zap.Logger) *PostalCEP {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostalCEP{baseURL: baseURL, client: newRetryingClient(), cache: c, log: log}
}

// Lookup resolves a postal code, digit-stripping the input first.
// Invalid-length codes return a miss without any network call (spec.md
// §4.6).
func (p *PostalCEP) Lookup(ctx context.Context, code string) (PostalAddress, bool) {
	if p.baseURL == "" {
		p.warnOnce.Do(func() {
			p.log.Warn("postalcep resolver disabled: no base url configured")
		})
		return PostalAddress{}, false
	}

	digits, ok := sanitizePostalCode(code, postalCodeDigits)
	if !ok {
		return PostalAddress{}, false
	}

	key := "postalcep:" + digits
	var cached PostalAddress
	if hit, miss := cacheGetJSON(ctx, p.cache, key, &cached); hit {
		return cached, true
	} else if miss {
		return PostalAddress{}, false
	}

	u := fmt.Sprintf("%s/%s/json", p.baseURL, url.PathEscape(digits))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return PostalAddress{}, false
	}

	resp, err := retryableDo(ctx, p.client, req)
	if err != nil {
		p.log.Warn("postalcep lookup failed", zap.String("code", digits), zap.Error(err))
		return PostalAddress{}, false
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		p.cache.Set(ctx, key, cache.MissSentinel, postalCacheTTL)
		return PostalAddress{}, false
	}

	var body struct {
		Logradouro string `json:"logradouro"`
		Bairro     string `json:"bairro"`
		Localidade string `json:"localidade"`
		UF         string `json:"uf"`
		Erro       bool   `json:"erro"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		p.log.Warn("postalcep response decode failed", zap.Error(err))
		return PostalAddress{}, false
	}
	if body.Erro {
		p.cache.Set(ctx, key, cache.MissSentinel, postalCacheTTL)
		return PostalAddress{}, false
	}

	addr := PostalAddress{
		Street:       body.Logradouro,
		Neighborhood: body.Bairro,
		City:         body.Localidade,
		State:        body.UF,
	}
	cacheSetJSON(ctx, p.cache, key, addr, postalCacheTTL)
	return addr, true
}
