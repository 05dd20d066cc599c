package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                  string        `mapstructure:"ENV"`
	Port                 string        `mapstructure:"PORT"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	AdminKey             string        `mapstructure:"ADMIN_KEY"`
	AIURL                string        `mapstructure:"AI_URL"`
	AssistantBaseURL     string        `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel       string        `mapstructure:"ASSISTANT_MODEL"`
	AssistantAPIKey      string        `mapstructure:"ASSISTANT_API_KEY"`
	AssistantMaxTokens   int           `mapstructure:"ASSISTANT_MAX_TOKENS"`
	CORSAllowed          string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB      int64         `mapstructure:"MAX_UPLOAD_MB"`
	PullSchedule         string        `mapstructure:"PULL_SCHEDULE"`
	MigrateOnStart       bool          `mapstructure:"MIGRATE_ON_START"`
	DashboardPresetsPath string        `mapstructure:"DASHBOARD_PRESETS_PATH"`
	EscalationMarkers    string        `mapstructure:"ESCALATION_MARKERS"`
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("AI_URL", "")
	v.SetDefault("ASSISTANT_BASE_URL", "")
	v.SetDefault("ASSISTANT_MODEL", "")
	v.SetDefault("ASSISTANT_API_KEY", "")
	v.SetDefault("ASSISTANT_MAX_TOKENS", 512)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("PULL_SCHEDULE", "")
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("DASHBOARD_PRESETS_PATH", "")
	v.SetDefault("ESCALATION_MARKERS", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Markers splits ESCALATION_MARKERS on commas. Nil means the built-in set.
func (c Config) Markers() []string {
	if strings.TrimSpace(c.EscalationMarkers) == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(c.EscalationMarkers, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
