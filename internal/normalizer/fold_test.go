package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
)

func TestFold(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "JARDIM AURORA", "jardim aurora"},
		{"strips accents", "São Geraldo", "sao geraldo"},
		{"collapses whitespace", "Jd   Aurora\t\n", "jd aurora"},
		{"trims", "  Centro  ", "centro"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Fold(c.in))
		})
	}
}

func TestFoldIdempotent(t *testing.T) {
	inputs := []string{"JARDIM AURORA", "São Geraldo do Baixio", "  Ed.   Aurora  ", ""}
	for _, in := range inputs {
		once := Fold(in)
		twice := Fold(once)
		assert.Equal(t, once, twice, "Fold must be idempotent for %q", in)
	}
}

func TestFoldWithPrefixesStripsFirstMatchOnly(t *testing.T) {
	got := FoldWithPrefixes("Jardim Aurora", domain.KindNeighborhood)
	require.Equal(t, "aurora", got)

	// Prefix-looking word mid-string is untouched.
	got = FoldWithPrefixes("Aurora Jardim", domain.KindNeighborhood)
	require.Equal(t, "aurora jardim", got)
}

func TestFoldWithPrefixesEmptyRegistryForStreetAndCity(t *testing.T) {
	assert.Equal(t, "jardim das flores", FoldWithPrefixes("Jardim das Flores", domain.KindStreet))
	assert.Equal(t, "jardim das flores", FoldWithPrefixes("Jardim das Flores", domain.KindCity))
}

func TestFoldWithPrefixesIdempotentWithinKind(t *testing.T) {
	kinds := []domain.EntityKind{domain.KindCity, domain.KindNeighborhood, domain.KindStreet, domain.KindCondo}
	inputs := []string{"Condominio Aurora II", "Setor Marista Sul", "Ed. Aurora", "Belvedere"}
	for _, k := range kinds {
		for _, in := range inputs {
			once := FoldWithPrefixes(in, k)
			twice := FoldWithPrefixes(once, k)
			assert.Equal(t, once, twice, "FoldWithPrefixes(%q, %s) must be idempotent", in, k)
		}
	}
}

func TestFoldWithPrefixesNumeralSuffixDistinctness(t *testing.T) {
	base := "Parque Industrial"
	one := FoldWithPrefixes(base+" I", domain.KindNeighborhood)
	two := FoldWithPrefixes(base+" II", domain.KindNeighborhood)
	assert.NotEqual(t, one, two)
	assert.Equal(t, "industrial 1", one)
	assert.Equal(t, "industrial 2", two)
}

func TestFoldWithPrefixesAbbreviationNumerals(t *testing.T) {
	assert.Equal(t, "3", FoldWithPrefixes("Bloco tres", domain.KindCondo))
}
