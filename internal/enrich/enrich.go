// Package enrich is the Enricher (C5, spec.md §4.5): per-kind cascades
// through the external resolvers to assign a group an authoritative
// canonical name, plus Dice-bigram scoring of the best-matching member.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/normalizer"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/resolvers"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/similarity"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

const (
	registryDiceThreshold = 0.5
	scoreGeocoder         = 0.8
	scoreStreetGeocoder   = 0.8
	scorePlaces           = 0.9
	scoreCondoGeocoder    = 0.7
	capPostalCodes        = 10
)

// Result is the canonical fields an Enricher run adds to a group (spec.md
// §4.5 "Authoritative name" / "Suggested canonical").
type Result struct {
	CanonicalName      string
	CanonicalSource    string
	CanonicalAddress   string
	Score              float64
	SuggestedMemberIdx int // index into the group's MemberIDs/MemberNames
}

// registryResolver, postalResolver, geocodeResolver and placesResolver
// are the narrow surfaces Enrich depends on, satisfied by
// internal/resolvers' concrete adapters; tests substitute fakes.
type registryResolver interface {
	MunicipalitiesByState(ctx context.Context, stateCode string) ([]resolvers.Municipality, bool)
}

type postalResolver interface {
	Lookup(ctx context.Context, code string) (resolvers.PostalAddress, bool)
}

type geocodeResolver interface {
	Geocode(ctx context.Context, addressText string) (resolvers.GeocodeResult, bool)
}

type placesResolver interface {
	FindByText(ctx context.Context, query string) (resolvers.PlaceResult, bool)
}

// Enricher resolves per-member context and an authoritative canonical
// name for a persisted group.
type Enricher struct {
	host     storage.HostStore
	registry registryResolver
	postal   postalResolver
	geocoder geocodeResolver
	places   placesResolver
	log      *zap.Logger
}

// New builds an Enricher. Any resolver may be nil, in which case that
// stage of its cascade is treated as a miss.
func New(host storage.HostStore, registry registryResolver, postal postalResolver, geocoder geocodeResolver, places placesResolver, log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{host: host, registry: registry, postal: postal, geocoder: geocoder, places: places, log: log}
}

// ResolveContexts fetches the hierarchy context for every member of g
// (spec.md §4.5(a)).
func (e *Enricher) ResolveContexts(ctx context.Context, g *domain.DuplicateGroup) ([]domain.MemberContext, error) {
	out := make([]domain.MemberContext, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		mc, err := e.host.MemberHierarchy(ctx, g.EntityKind, id, capPostalCodes)
		if err != nil {
			return nil, fmt.Errorf("enrich: member hierarchy for %s: %w", id, err)
		}
		mc.GroupID = g.ID
		mc.MemberID = id
		out = append(out, mc)
	}
	return out, nil
}

// Enrich resolves the authoritative canonical name for g and the
// best-matching member to suggest as canonical. Resolver failures are
// swallowed per spec.md §4.5 "Failure isolation" — the returned Result's
// CanonicalName is empty when every stage of the cascade missed.
func (e *Enricher) Enrich(ctx context.Context, g *domain.DuplicateGroup, contexts []domain.MemberContext) Result {
	var res Result
	switch g.EntityKind {
	case domain.KindCity:
		res = e.enrichCity(ctx, g, contexts)
	case domain.KindNeighborhood:
		res = e.enrichNeighborhood(ctx, g, contexts)
	case domain.KindStreet:
		res = e.enrichStreet(ctx, g, contexts)
	case domain.KindCondo:
		res = e.enrichCondo(ctx, g, contexts)
	default:
		e.log.Warn("enrich: unrecognized entity kind", zap.String("kind", string(g.EntityKind)))
		return res
	}

	if res.CanonicalName != "" {
		res.SuggestedMemberIdx = suggestCanonicalMember(g.MemberNames, res.CanonicalName)
	}
	return res
}

func suggestCanonicalMember(memberNames []string, canonicalName string) int {
	idx := similarity.BestMatch(normalizer.Fold(canonicalName), foldAll(memberNames))
	if idx < 0 {
		return 0
	}
	return idx
}

func foldAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normalizer.Fold(n)
	}
	return out
}

func (e *Enricher) enrichCity(ctx context.Context, g *domain.DuplicateGroup, contexts []domain.MemberContext) Result {
	stateCode := ""
	if len(contexts) > 0 && contexts[0].StateCode != nil {
		stateCode = *contexts[0].StateCode
	}

	if e.registry != nil && stateCode != "" {
		municipalities, ok := e.registry.MunicipalitiesByState(ctx, stateCode)
		if ok {
			target := normalizer.Fold(g.MemberNames[0])
			bestIdx, bestScore := -1, -1.0
			for i, m := range municipalities {
				score := similarity.Dice(target, normalizer.Fold(m.Name))
				if score > bestScore {
					bestScore = score
					bestIdx = i
				}
			}
			if bestIdx >= 0 && bestScore >= registryDiceThreshold {
				return Result{CanonicalName: municipalities[bestIdx].Name, CanonicalSource: "Registry", Score: bestScore}
			}
		}
	}

	if e.geocoder != nil {
		if hit, ok := e.geocoder.Geocode(ctx, fmt.Sprintf("%s, %s", g.MemberNames[0], stateCode)); ok {
			return Result{CanonicalName: firstNonEmpty(hit.City, g.MemberNames[0]), CanonicalSource: "Geocoder", CanonicalAddress: hit.FormattedAddress, Score: scoreGeocoder}
		}
	}
	return Result{}
}

func (e *Enricher) enrichNeighborhood(ctx context.Context, g *domain.DuplicateGroup, contexts []domain.MemberContext) Result {
	var codes []string
	for _, mc := range contexts {
		codes = append(codes, mc.PostalCodes...)
	}

	if e.postal != nil && len(codes) > 0 {
		votes := make([]string, len(codes))
		if len(codes) > 1 {
			g2, gctx := errgroup.WithContext(ctx)
			for i, code := range codes {
				i, code := i, code
				g2.Go(func() error {
					if addr, ok := e.postal.Lookup(gctx, code); ok {
						votes[i] = addr.Neighborhood
					}
					return nil
				})
			}
			_ = g2.Wait()
		} else {
			if addr, ok := e.postal.Lookup(ctx, codes[0]); ok {
				votes[0] = addr.Neighborhood
			}
		}

		tally := map[string]int{}
		order := []string{}
		resolved := 0
		for _, v := range votes {
			if v == "" {
				continue
			}
			resolved++
			if tally[v] == 0 {
				order = append(order, v)
			}
			tally[v]++
		}
		if resolved > 0 {
			winner, wins := "", 0
			for _, name := range order {
				if tally[name] > wins {
					wins = tally[name]
					winner = name
				}
			}
			if winner != "" {
				return Result{CanonicalName: winner, CanonicalSource: "PostalCEP", Score: float64(wins) / float64(resolved)}
			}
		}
	}

	if e.geocoder != nil {
		city, state := contextStrings(contexts)
		if hit, ok := e.geocoder.Geocode(ctx, fmt.Sprintf("%s, %s, %s", g.MemberNames[0], city, state)); ok {
			return Result{CanonicalName: firstNonEmpty(hit.Neighborhood, g.MemberNames[0]), CanonicalSource: "Geocoder", CanonicalAddress: hit.FormattedAddress, Score: scoreGeocoder}
		}
	}
	return Result{}
}

func (e *Enricher) enrichStreet(ctx context.Context, g *domain.DuplicateGroup, contexts []domain.MemberContext) Result {
	if e.postal != nil {
		for _, mc := range contexts {
			for _, code := range mc.PostalCodes {
				if addr, ok := e.postal.Lookup(ctx, code); ok && addr.Street != "" {
					return Result{CanonicalName: addr.Street, CanonicalSource: "PostalCEP", Score: 1.0}
				}
			}
		}
	}

	if e.geocoder != nil {
		city, state := contextStrings(contexts)
		if hit, ok := e.geocoder.Geocode(ctx, fmt.Sprintf("%s, %s, %s", g.MemberNames[0], city, state)); ok {
			return Result{CanonicalName: firstNonEmpty(hit.Street, g.MemberNames[0]), CanonicalSource: "Geocoder", CanonicalAddress: hit.FormattedAddress, Score: scoreStreetGeocoder}
		}
	}
	return Result{}
}

func (e *Enricher) enrichCondo(ctx context.Context, g *domain.DuplicateGroup, contexts []domain.MemberContext) Result {
	city, state := contextStrings(contexts)

	if e.places != nil {
		for _, name := range g.MemberNames {
			query := fmt.Sprintf("%s, %s, %s", name, city, state)
			if hit, ok := e.places.FindByText(ctx, query); ok {
				return Result{CanonicalName: hit.Name, CanonicalSource: "Places", CanonicalAddress: hit.FormattedAddress, Score: scorePlaces}
			}
		}
	}

	if e.geocoder != nil {
		query := fmt.Sprintf("%s, %s, %s", g.MemberNames[0], city, state)
		if hit, ok := e.geocoder.Geocode(ctx, query); ok {
			return Result{CanonicalName: g.MemberNames[0], CanonicalSource: "Geocoder", CanonicalAddress: hit.FormattedAddress, Score: scoreCondoGeocoder}
		}
	}
	return Result{}
}

func contextStrings(contexts []domain.MemberContext) (city, state string) {
	for _, mc := range contexts {
		if city == "" && mc.CityName != nil {
			city = *mc.CityName
		}
		if state == "" && mc.StateCode != nil {
			state = *mc.StateCode
		}
	}
	return city, state
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
