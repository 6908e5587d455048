// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"whatsapp-bridge/internal/integrations/paramstore"
)

const (
	StorageSupabase = "supabase"
	StorageMinio    = "minio"
)

// Secret parameter names looked up under PARAM_PREFIX.
const (
	paramTwilioAuthToken    = "twilio-auth-token"
	paramSupabaseServiceKey = "supabase-service-key"
	paramMinioSecretKey     = "minio-secret-key"
)

type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `validate:"omitempty,oneof=text json logfmt"`

	AgentBackendURL string        `validate:"omitempty,url"`
	AgentTimeout    time.Duration `validate:"gt=0"`

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string `validate:"required"`
	TwilioAPIBaseURL     string `validate:"omitempty,url"`

	StorageProvider       string `validate:"oneof=supabase minio"`
	SupabaseURL           string `validate:"omitempty,url"`
	SupabaseServiceKey    string
	SupabaseStorageBucket string `validate:"required"`
	MinioEndpoint         string `validate:"required_if=StorageProvider minio"`
	MinioAccessKey        string
	MinioSecretKey        string
	MinioBucket           string `validate:"required"`
	MinioUseSSL           bool

	SessionTTL      time.Duration `validate:"gt=0"`
	SessionMaxTurns int           `validate:"gt=0"`
	MediaMaxBytes   int64         `validate:"gt=0"`

	ParamPrefix  string
	ArchiveTable string
}

// TwilioConfigured reports whether outbound messaging has credentials.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// SupabaseConfigured reports whether the Supabase storage backend can be used.
func (c Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// MinioConfigured reports whether the MinIO storage backend can be used.
func (c Config) MinioConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// UsesAWS reports whether any AWS-backed feature is enabled.
func (c Config) UsesAWS() bool {
	return c.ParamPrefix != "" || c.ArchiveTable != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("AGENT_BACKEND_URL", "")
	v.SetDefault("AGENT_TIMEOUT", "120s")
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_WHATSAPP_NUMBER", "+14155238886")
	v.SetDefault("TWILIO_API_BASE_URL", "")
	v.SetDefault("STORAGE_PROVIDER", StorageSupabase)
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_SERVICE_KEY", "")
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "product-images")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "product-images")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SESSION_MAX_TURNS", 20)
	v.SetDefault("MEDIA_MAX_BYTES", 10*1024*1024)
	v.SetDefault("PARAM_PREFIX", "")
	v.SetDefault("ARCHIVE_TABLE", "")
}

// Load reads an optional .env file, then the environment, applies defaults
// and validates the result. Values already bound in v (for example CLI
// flags) win over the environment. v may be nil.
func Load(v *viper.Viper) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	if v == nil {
		v = viper.New()
	}
	defaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:                  strings.TrimSpace(v.GetString("PORT")),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
		AgentBackendURL:       strings.TrimRight(strings.TrimSpace(v.GetString("AGENT_BACKEND_URL")), "/"),
		AgentTimeout:          v.GetDuration("AGENT_TIMEOUT"),
		TwilioAccountSID:      strings.TrimSpace(v.GetString("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:       strings.TrimSpace(v.GetString("TWILIO_AUTH_TOKEN")),
		TwilioWhatsAppNumber:  strings.TrimSpace(v.GetString("TWILIO_WHATSAPP_NUMBER")),
		TwilioAPIBaseURL:      strings.TrimSpace(v.GetString("TWILIO_API_BASE_URL")),
		StorageProvider:       strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_PROVIDER"))),
		SupabaseURL:           strings.TrimRight(strings.TrimSpace(v.GetString("SUPABASE_URL")), "/"),
		SupabaseServiceKey:    strings.TrimSpace(v.GetString("SUPABASE_SERVICE_KEY")),
		SupabaseStorageBucket: strings.TrimSpace(v.GetString("SUPABASE_STORAGE_BUCKET")),
		MinioEndpoint:         strings.TrimSpace(v.GetString("MINIO_ENDPOINT")),
		MinioAccessKey:        strings.TrimSpace(v.GetString("MINIO_ACCESS_KEY")),
		MinioSecretKey:        strings.TrimSpace(v.GetString("MINIO_SECRET_KEY")),
		MinioBucket:           strings.TrimSpace(v.GetString("MINIO_BUCKET")),
		MinioUseSSL:           v.GetBool("MINIO_USE_SSL"),
		SessionTTL:            v.GetDuration("SESSION_TTL"),
		SessionMaxTurns:       v.GetInt("SESSION_MAX_TURNS"),
		MediaMaxBytes:         v.GetInt64("MEDIA_MAX_BYTES"),
		ParamPrefix:           strings.TrimSpace(v.GetString("PARAM_PREFIX")),
		ArchiveTable:          strings.TrimSpace(v.GetString("ARCHIVE_TABLE")),
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// ResolveSecrets fills secrets that are missing from the environment from
// the parameter store under ParamPrefix. It is a no-op without a prefix or
// when every secret is already set.
func (c *Config) ResolveSecrets(ctx context.Context, r paramstore.Resolver) error {
	if c.ParamPrefix == "" || r == nil {
		return nil
	}
	targets := map[string]*string{
		paramTwilioAuthToken:    &c.TwilioAuthToken,
		paramSupabaseServiceKey: &c.SupabaseServiceKey,
		paramMinioSecretKey:     &c.MinioSecretKey,
	}
	keys := make([]string, 0, len(targets))
	for _, k := range []string{paramTwilioAuthToken, paramSupabaseServiceKey, paramMinioSecretKey} {
		if *targets[k] == "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	values, err := r.Resolve(ctx, c.ParamPrefix, keys)
	if err != nil {
		return fmt.Errorf("config: resolve secrets: %w", err)
	}
	for k, v := range values {
		if dst, ok := targets[k]; ok && v != "" {
			*dst = v
		}
	}
	return nil
}
