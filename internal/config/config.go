package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "PAGEWALL"
	defaultHTTPAddress   = "0.0.0.0:8000"
	defaultDatabasePath  = "data/pagewall.db"
	defaultLogLevel      = "info"
	defaultCacheDir      = "cache"
	defaultUploadDir     = "uploads"
	defaultWatermarkDir  = "static_watermarks"
	defaultTokenTTLHours = 24
	defaultMaxUploadSize = 50 * 1024 * 1024
	defaultConvertDPI    = 200
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	CacheDir            string
	UploadDir           string
	WatermarkDir        string
	TokenTTL            time.Duration
	RequireRefererCheck bool
	AllowedEmbedDomains []string
	InsecureEmbedBypass bool
	AdminSigningSecret  string
	MaxUploadBytes      int64
	ConvertDPI          int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("cache.dir", defaultCacheDir)
	configViper.SetDefault("upload.dir", defaultUploadDir)
	configViper.SetDefault("upload.max_bytes", defaultMaxUploadSize)
	configViper.SetDefault("watermark.dir", defaultWatermarkDir)
	configViper.SetDefault("token.ttl_hours", defaultTokenTTLHours)
	configViper.SetDefault("trust.require_referer_check", false)
	configViper.SetDefault("trust.allowed_embed_domains", "")
	configViper.SetDefault("trust.insecure_embed_bypass", false)
	configViper.SetDefault("convert.dpi", defaultConvertDPI)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		CacheDir:            configViper.GetString("cache.dir"),
		UploadDir:           configViper.GetString("upload.dir"),
		WatermarkDir:        configViper.GetString("watermark.dir"),
		TokenTTL:            time.Duration(configViper.GetInt("token.ttl_hours")) * time.Hour,
		RequireRefererCheck: configViper.GetBool("trust.require_referer_check"),
		AllowedEmbedDomains: splitDomains(configViper.GetString("trust.allowed_embed_domains")),
		InsecureEmbedBypass: configViper.GetBool("trust.insecure_embed_bypass"),
		AdminSigningSecret:  configViper.GetString("auth.signing_secret"),
		MaxUploadBytes:      configViper.GetInt64("upload.max_bytes"),
		ConvertDPI:          configViper.GetInt("convert.dpi"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AdminSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_hours must be positive")
	}
	return nil
}

// splitDomains parses the comma-separated embed domain allowlist, dropping blanks.
func splitDomains(raw string) []string {
	parts := strings.Split(raw, ",")
	domains := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			domains = append(domains, trimmed)
		}
	}
	return domains
}
