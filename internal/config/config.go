package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all client configuration. Values come from config.yaml when
// present; environment variables always override.
type Config struct {
	// APIBaseURL is the backend REST API base URL (the gateway stage URL).
	APIBaseURL string `yaml:"api_base_url" env:"TEAMCAL_API_BASE_URL" env-default:""`

	// DemoMode replaces every external call with in-memory fixtures.
	DemoMode bool `yaml:"demo_mode" env:"TEAMCAL_DEMO_MODE" env-default:"false"`

	// AuthDomain is the hosted identity provider domain used for the
	// redirect-based sign-in flow.
	AuthDomain string `yaml:"auth_domain" env:"TEAMCAL_AUTH_DOMAIN" env-default:""`

	// ClientID is the app client id registered with the identity provider.
	ClientID string `yaml:"client_id" env:"TEAMCAL_CLIENT_ID" env-default:""`

	// RedirectPort is the local port the sign-in flow listens on for the
	// provider callback.
	RedirectPort string `yaml:"redirect_port" env:"TEAMCAL_REDIRECT_PORT" env-default:"8080"`

	// LogLevel controls slog verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"TEAMCAL_LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from the given YAML file (if it exists) and the
// environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			return cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return cfg, nil
}
