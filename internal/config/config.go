package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Submission execution strategies.
const (
	SubmissionModeSync     = "sync"
	SubmissionModeDeferred = "deferred"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	OpenAIAPIKey       string
	OpenAIModel        string
	MailerBaseURL      string
	MailerAPIKey       string
	FeedbackTemplateID string
	SubmissionMode     string
	DuplicateWindow    time.Duration
	DuplicateThreshold int
	GuardCacheTTL      time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESSAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EssayPilot API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("submission.mode", SubmissionModeSync)
	v.SetDefault("duplicate.window", "720h")
	v.SetDefault("duplicate.threshold", 5)
	v.SetDefault("guard.cache_ttl", "5m")
	v.SetDefault("mailer.feedback_template", "essay-feedback")

	window, err := time.ParseDuration(v.GetString("duplicate.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid duplicate window: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("guard.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid guard cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		OpenAIAPIKey:       v.GetString("openai.api_key"),
		OpenAIModel:        v.GetString("openai.model"),
		MailerBaseURL:      v.GetString("mailer.base_url"),
		MailerAPIKey:       v.GetString("mailer.api_key"),
		FeedbackTemplateID: v.GetString("mailer.feedback_template"),
		SubmissionMode:     strings.ToLower(v.GetString("submission.mode")),
		DuplicateWindow:    window,
		DuplicateThreshold: v.GetInt("duplicate.threshold"),
		GuardCacheTTL:      cacheTTL,
	}

	if cfg.SubmissionMode != SubmissionModeSync && cfg.SubmissionMode != SubmissionModeDeferred {
		return Config{}, fmt.Errorf("invalid submission mode %q", cfg.SubmissionMode)
	}

	if cfg.SubmissionMode == SubmissionModeDeferred && cfg.NATSURL == "" {
		return Config{}, fmt.Errorf("deferred submission mode requires a nats url")
	}

	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = 5
	}

	return cfg, nil
}
