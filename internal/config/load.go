package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadOptions holds optional file overrides for Load.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// LoadOption is a functional option for Load.
type LoadOption func(*LoadOptions)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoadOption {
	return func(o *LoadOptions) { o.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoadOption {
	return func(o *LoadOptions) { o.EnvFile = path }
}

// Load builds the full configuration tree. Precedence, lowest first:
// config.yml, process environment, .env file. Defaults are applied and the
// result validated before returning.
func Load(opts ...LoadOption) (*Config, error) {
	var o LoadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.ConfigFile == "" {
		o.ConfigFile = findFirst(
			"./config.yml",
			"./config/config.yml",
			"./cmd/api/config.yml",
		)
	}
	if o.EnvFile == "" {
		o.EnvFile = findFirst(
			fmt.Sprintf(".env.%s", ServiceName),
			".env",
		)
	}

	v := viper.New()

	if o.ConfigFile != "" {
		v.SetConfigFile(o.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", o.ConfigFile, err)
		}
	}

	v.AutomaticEnv()
	bindEnvVariants(v)

	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", o.EnvFile, err)
		}
		// Pick up keys the .env file introduced.
		bindEnvVariants(v)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// bindEnvVariants maps UPPER_SNAKE environment keys onto viper's nested key
// space so STT_DEEPGRAM_API_KEY reaches stt.deepgram.api_key without a
// per-field bind table.
func bindEnvVariants(v *viper.Viper) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants generates the plausible nested spellings of an env key.
// AUTH_JWT_SECRET yields auth.jwt.secret, auth.jwt_secret, and so on; the
// config struct's mapstructure tags select whichever applies.
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	seen := map[string]bool{}
	var variants []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			variants = append(variants, s)
		}
	}

	add(lower)
	add(strings.ReplaceAll(lower, "_", "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}
	return variants
}
