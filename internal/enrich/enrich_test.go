package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/resolvers"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

type fakeRegistry struct {
	byState map[string][]resolvers.Municipality
}

func (f *fakeRegistry) MunicipalitiesByState(_ context.Context, state string) ([]resolvers.Municipality, bool) {
	m, ok := f.byState[state]
	return m, ok
}

type fakePostal struct {
	byCode map[string]resolvers.PostalAddress
}

func (f *fakePostal) Lookup(_ context.Context, code string) (resolvers.PostalAddress, bool) {
	a, ok := f.byCode[code]
	return a, ok
}

type fakeGeocoder struct {
	result resolvers.GeocodeResult
	ok     bool
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (resolvers.GeocodeResult, bool) {
	return f.result, f.ok
}

type fakePlaces struct {
	result resolvers.PlaceResult
	ok     bool
}

func (f *fakePlaces) FindByText(_ context.Context, _ string) (resolvers.PlaceResult, bool) {
	return f.result, f.ok
}

// S5 from spec.md §8: city Registry match, Dice=1.0.
func TestEnrichCityUsesRegistryExactMatch(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindCity,
		MemberIDs:   []string{"c1", "c2"},
		MemberNames: []string{"Sao Paulo", "Sao Paulo "},
	}
	stateCode := "SP"
	contexts := []domain.MemberContext{{StateCode: &stateCode}, {StateCode: &stateCode}}

	reg := &fakeRegistry{byState: map[string][]resolvers.Municipality{
		"SP": {{ID: "1", Name: "Sao Paulo"}},
	}}

	e := New(store, reg, nil, nil, nil, nil)
	res := e.Enrich(context.Background(), g, contexts)

	assert.Equal(t, "Sao Paulo", res.CanonicalName)
	assert.Equal(t, "Registry", res.CanonicalSource)
	assert.InDelta(t, 1.0, res.Score, 0.01)
}

func TestEnrichCityFallsBackToGeocoderOnRegistryMiss(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindCity,
		MemberIDs:   []string{"c1"},
		MemberNames: []string{"Vila Nova"},
	}
	geo := &fakeGeocoder{ok: true, result: resolvers.GeocodeResult{City: "Vila Nova do Sul", FormattedAddress: "Vila Nova do Sul, BR"}}

	e := New(store, &fakeRegistry{byState: map[string][]resolvers.Municipality{}}, nil, geo, nil, nil)
	res := e.Enrich(context.Background(), g, []domain.MemberContext{{}})

	assert.Equal(t, "Vila Nova do Sul", res.CanonicalName)
	assert.Equal(t, "Geocoder", res.CanonicalSource)
	assert.InDelta(t, 0.8, res.Score, 0.01)
}

// S4 from spec.md §8: neighborhood majority vote, 7/9 ~= 0.7778.
func TestEnrichNeighborhoodMajorityVote(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindNeighborhood,
		MemberIDs:   []string{"n1"},
		MemberNames: []string{"Centro"},
	}
	codes := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9"}
	byCode := map[string]resolvers.PostalAddress{}
	for i, c := range codes {
		name := "Centro"
		if i >= 7 {
			name = "Centro Historico"
		}
		byCode[c] = resolvers.PostalAddress{Neighborhood: name}
	}
	contexts := []domain.MemberContext{{PostalCodes: codes}}

	e := New(store, nil, &fakePostal{byCode: byCode}, nil, nil, nil)
	res := e.Enrich(context.Background(), g, contexts)

	require.Equal(t, "PostalCEP", res.CanonicalSource)
	assert.Equal(t, "Centro", res.CanonicalName)
	assert.InDelta(t, 7.0/9.0, res.Score, 0.001)
}

func TestEnrichStreetDirectMatchFirstNonEmptyWins(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindStreet,
		MemberIDs:   []string{"s1"},
		MemberNames: []string{"Rua X"},
	}
	contexts := []domain.MemberContext{{PostalCodes: []string{"c1", "c2"}}}
	postal := &fakePostal{byCode: map[string]resolvers.PostalAddress{
		"c2": {Street: "Rua das Flores"},
	}}

	e := New(store, nil, postal, nil, nil, nil)
	res := e.Enrich(context.Background(), g, contexts)

	assert.Equal(t, "Rua das Flores", res.CanonicalName)
	assert.Equal(t, "PostalCEP", res.CanonicalSource)
	assert.Equal(t, 1.0, res.Score)
}

func TestEnrichCondoUsesPlacesFirstHit(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindCondo,
		MemberIDs:   []string{"cd1"},
		MemberNames: []string{"Ed. Aurora"},
	}
	places := &fakePlaces{ok: true, result: resolvers.PlaceResult{Name: "Edificio Aurora", FormattedAddress: "Rua Y, 200"}}

	e := New(store, nil, nil, nil, places, nil)
	res := e.Enrich(context.Background(), g, []domain.MemberContext{{}})

	assert.Equal(t, "Edificio Aurora", res.CanonicalName)
	assert.Equal(t, "Places", res.CanonicalSource)
	assert.InDelta(t, 0.9, res.Score, 0.01)
}

func TestEnrichReturnsEmptyResultWhenAllResolversMiss(t *testing.T) {
	store := memory.New()
	g := &domain.DuplicateGroup{
		EntityKind:  domain.KindCity,
		MemberIDs:   []string{"c1"},
		MemberNames: []string{"Nowhere"},
	}
	e := New(store, nil, nil, nil, nil, nil)
	res := e.Enrich(context.Background(), g, []domain.MemberContext{{}})
	assert.Empty(t, res.CanonicalName)
}

func TestSuggestCanonicalMemberPicksBestDiceMatch(t *testing.T) {
	names := []string{"Centro Velho", "Centro"}
	idx := suggestCanonicalMember(names, "Centro")
	assert.Equal(t, 1, idx)
}
