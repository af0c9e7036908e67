package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Planning  PlanningConfig  `mapstructure:"planning"`
}

// ProvidersConfig carries every outbound collaborator the gateways talk to.
// API keys come from the environment; an empty key degrades the owning gateway
// to its fallback tier instead of failing startup.
type ProvidersConfig struct {
	GoogleMapsAPIKey      string        `mapstructure:"googleMapsAPIKey"`
	PredictHQToken        string        `mapstructure:"predictHQToken"`
	GeminiAPIKey          string        `mapstructure:"geminiAPIKey"`
	AgentProxyURL         string        `mapstructure:"agentProxyURL"`
	ReverseGeocodeURL     string        `mapstructure:"reverseGeocodeURL"`
	IPLookupURLs          []string      `mapstructure:"ipLookupURLs"`
	OverpassURL           string        `mapstructure:"overpassURL"`
	EventsURL             string        `mapstructure:"eventsURL"`
	HTTPTimeout           time.Duration `mapstructure:"httpTimeout"`
	DeviceLocationTimeout time.Duration `mapstructure:"deviceLocationTimeout"`
}

type PlanningConfig struct {
	DefaultRadiusMeters int     `mapstructure:"defaultRadiusMeters"`
	MaxPlaces           int     `mapstructure:"maxPlaces"`
	MaxEvents           int     `mapstructure:"maxEvents"`
	EventRadiusKm       float64 `mapstructure:"eventRadiusKm"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Provider secrets and URLs are environment-supplied, never committed.
	_ = v.BindEnv("providers.googleMapsAPIKey", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("providers.predictHQToken", "PREDICTHQ_TOKEN")
	_ = v.BindEnv("providers.geminiAPIKey", "GOOGLE_GEMINI_API_KEY")
	_ = v.BindEnv("providers.agentProxyURL", "AGENT_PROXY_URL")

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
