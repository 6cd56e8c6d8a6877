package config

import (
	"errors"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the colloquium service.
type Config struct {
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
	Server     ServerConfig
	OpenRouter OpenRouterConfig
	Redis      RedisConfig
	Rabbit     RabbitConfig
	KeyStore   KeyStoreConfig
	Speech     SpeechConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

// OpenRouterConfig holds settings for the model-routing provider.
type OpenRouterConfig struct {
	BaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	APIKey  string `envconfig:"OPENROUTER_API_KEY"`
	SiteURL string `envconfig:"OPENROUTER_SITE_URL"`
	AppName string `envconfig:"OPENROUTER_APP_NAME" default:"colloquium"`
}

// RedisConfig holds the model-catalog cache settings. An empty address
// disables caching.
type RedisConfig struct {
	Addr              string `envconfig:"REDIS_ADDR"`
	Password          string `envconfig:"REDIS_PASSWORD"`
	DB                int    `envconfig:"REDIS_DB" default:"0"`
	CatalogTTLMinutes int    `envconfig:"REDIS_CATALOG_TTL_MINUTES" default:"10"`
}

// RabbitConfig holds the optional progress-event fan-out settings. An empty
// URL disables publishing.
type RabbitConfig struct {
	URL   string `envconfig:"RABBIT_URL"`
	Queue string `envconfig:"RABBIT_QUEUE" default:"conversation_events"`
}

// KeyStoreConfig holds the local credential store settings.
type KeyStoreConfig struct {
	Path string `envconfig:"KEYSTORE_PATH" default:"colloquium.db"`
}

// SpeechConfig holds speech-synthesis settings for the speaker client.
type SpeechConfig struct {
	BaseURL string `envconfig:"SPEECH_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey  string `envconfig:"SPEECH_API_KEY"`
	Model   string `envconfig:"SPEECH_MODEL" default:"gpt-4o-mini-tts"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.OpenRouter.BaseURL == "" {
		return errors.New("OPENROUTER_BASE_URL must not be empty")
	}
	return nil
}
