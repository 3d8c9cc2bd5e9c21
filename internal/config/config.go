// Package config loads the service's runtime configuration from the
// process environment via viper, following the env-var-bound pattern
// used elsewhere in the corpus for process configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every environment-derived setting the service needs.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        int

	AnthropicAPIKey string
	AnthropicModel  string

	ThresholdSimilaridade    float64
	LimitePorExecucao        int
	EnriquecimentoHabilitado bool

	RegistryBaseURL string
	RegistryAPIKey  string
	PostalBaseURL   string
	GeocoderBaseURL string
	GeocoderAPIKey  string
	PlacesBaseURL   string
	PlacesAPIKey    string
}

// Load reads configuration from environment variables, applying
// defaults for everything except DATABASE_URL, which is required.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5")
	v.SetDefault("THRESHOLD_SIMILARIDADE", 0.4)
	v.SetDefault("LIMITE_POR_EXECUCAO", 200)
	v.SetDefault("ENRIQUECIMENTO_HABILITADO", true)
	v.SetDefault("REGISTRY_BASE_URL", "")
	v.SetDefault("POSTAL_BASE_URL", "https://viacep.com.br/ws")
	v.SetDefault("GEOCODER_BASE_URL", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place/findplacefromtext/json")

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	return Config{
		DatabaseURL: dbURL,
		RedisURL:    v.GetString("REDIS_URL"),
		Port:        v.GetInt("PORT"),

		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:  v.GetString("ANTHROPIC_MODEL"),

		ThresholdSimilaridade:    v.GetFloat64("THRESHOLD_SIMILARIDADE"),
		LimitePorExecucao:        v.GetInt("LIMITE_POR_EXECUCAO"),
		EnriquecimentoHabilitado: v.GetBool("ENRIQUECIMENTO_HABILITADO"),

		RegistryBaseURL: v.GetString("REGISTRY_BASE_URL"),
		RegistryAPIKey:  v.GetString("REGISTRY_API_KEY"),
		PostalBaseURL:   v.GetString("POSTAL_BASE_URL"),
		GeocoderBaseURL: v.GetString("GEOCODER_BASE_URL"),
		GeocoderAPIKey:  v.GetString("GEOCODER_API_KEY"),
		PlacesBaseURL:   v.GetString("PLACES_BASE_URL"),
		PlacesAPIKey:    v.GetString("PLACES_API_KEY"),
	}, nil
}
