package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	LLMBaseURL string        `mapstructure:"LLM_BASE_URL"`
	LLMModel   string        `mapstructure:"LLM_MODEL"`
	LLMAPIKey  string        `mapstructure:"LLM_API_KEY"`
	LLMTimeout time.Duration `mapstructure:"LLM_TIMEOUT"`

	OrgID                 string        `mapstructure:"ORG_ID"`
	WeeklyCapacityDefault float64       `mapstructure:"WEEKLY_CAPACITY_DEFAULT"`
	CriticalOverageHours  float64       `mapstructure:"OVERALLOCATION_CRITICAL_HOURS"`
	UnderAllocationRatio  float64       `mapstructure:"UNDERALLOCATION_MIN_RATIO"`
	LookaheadWeeks        int           `mapstructure:"LOOKAHEAD_WEEKS"`
	PendingTTL            time.Duration `mapstructure:"PENDING_TTL"`
	RubberStampEnabled    bool          `mapstructure:"RUBBER_STAMP_ENABLED"`
	RubberStampMinWeeks   int           `mapstructure:"RUBBER_STAMP_MIN_WEEKS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)

	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT", "20s")

	v.SetDefault("ORG_ID", "org-main")
	v.SetDefault("WEEKLY_CAPACITY_DEFAULT", 40)
	v.SetDefault("OVERALLOCATION_CRITICAL_HOURS", 8)
	v.SetDefault("UNDERALLOCATION_MIN_RATIO", 0.5)
	v.SetDefault("LOOKAHEAD_WEEKS", 3)
	v.SetDefault("PENDING_TTL", "10m")
	v.SetDefault("RUBBER_STAMP_ENABLED", true)
	v.SetDefault("RUBBER_STAMP_MIN_WEEKS", 3)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
