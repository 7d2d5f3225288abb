package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// Command line flags take precedence over the values loaded here.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// Debug enables debug logs, including one access line per API request
	Debug bool `env:"DEBUG" env-default:"false" yaml:"debug"`

	// API contains the remote lookup service settings
	API struct {
		// BalanceURL is the endpoint used to validate keys and read credits
		BalanceURL string `env:"API_BALANCE_URL" env-default:"https://api.wappalyzer.com/credits/v2/balance/" yaml:"balanceUrl"` //nolint: lll
		// LookupURL is the batched lookup endpoint
		LookupURL string `env:"API_LOOKUP_URL" env-default:"https://api.wappalyzer.com/lookup/v2/" yaml:"lookupUrl"`
		// Timeout bounds a single HTTP request
		Timeout time.Duration `env:"API_TIMEOUT" env-default:"2m" yaml:"timeout"`
	} `yaml:"api"`

	// Runner contains batch loop settings
	Runner struct {
		// BatchSize is the number of domains sent per request, capped by the service limit
		BatchSize int `env:"RUNNER_BATCH_SIZE" env-default:"10" yaml:"batchSize"`
		// RetryDelay is how long to wait after the service answers 429
		RetryDelay time.Duration `env:"RUNNER_RETRY_DELAY" env-default:"5s" yaml:"retryDelay"`
		// RequestsPerSecond paces lookup requests; 0 disables pacing
		RequestsPerSecond float64 `env:"RUNNER_REQUESTS_PER_SECOND" env-default:"1" yaml:"requestsPerSecond"`
	} `yaml:"runner"`

	// Output contains output writer settings
	Output struct {
		// Dir is where per-domain files are created
		Dir string `env:"OUTPUT_DIR" env-default:"." yaml:"dir"`
	} `yaml:"output"`
}

// Load receives the path for yaml config file and returns a filled Config struct.
// A missing file is not an error: values then come from the environment and defaults.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read config from env: %w", err)
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
