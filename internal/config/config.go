package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// APIKeyPlaceholder is the value shipped in sample env files. It counts as
// "no key".
const APIKeyPlaceholder = "YOUR_TMDB_API_KEY_HERE"

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json text"`

	TMDBAPIKey        string  `envconfig:"TMDB_API_KEY"`
	TMDBBaseURL       string  `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3" validate:"required,url"`
	ImageBaseURL      string  `envconfig:"TMDB_IMAGE_BASE_URL" default:"https://image.tmdb.org/t/p/w500" validate:"required,url"`
	PosterPlaceholder string  `envconfig:"POSTER_PLACEHOLDER_URL" default:"https://via.placeholder.com/300x450?text=No+Image" validate:"required,url"`
	TMDBLanguage      string  `envconfig:"TMDB_LANGUAGE" default:"en-US" validate:"required"`
	TMDBTimeoutSecs   int     `envconfig:"TMDB_TIMEOUT_SECS" default:"0" validate:"gte=0"`
	TMDBRateLimit     float64 `envconfig:"TMDB_RATE_LIMIT" default:"40" validate:"gt=0"`
	TMDBRateBurst     int     `envconfig:"TMDB_RATE_BURST" default:"20" validate:"gte=1"`

	DebounceMillis   int    `envconfig:"DEBOUNCE_MS" default:"400" validate:"gte=1"`
	SessionTTLSecs   int    `envconfig:"SESSION_TTL_SECS" default:"1800" validate:"gte=1"`
	PageTemplatePath string `envconfig:"PAGE_TEMPLATE_PATH" validate:"omitempty,file"`
	AllowOrigins     string `envconfig:"ALLOW_ORIGINS" default:"*"`

	ReadTimeoutSecs  int `envconfig:"SERVER_READ_TIMEOUT" default:"15" validate:"gte=0"`
	WriteTimeoutSecs int `envconfig:"SERVER_WRITE_TIMEOUT" default:"15" validate:"gte=0"`
	IdleTimeoutSecs  int `envconfig:"SERVER_IDLE_TIMEOUT" default:"60" validate:"gte=0"`

	DBURL             string `envconfig:"DB_URL"`
	DBMaxConns        int    `envconfig:"DB_MAX_CONNS" default:"20" validate:"gt=0"`
	DBMinConns        int    `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0,ltefield=DBMaxConns"`
	DBMaxIdleSecs     int    `envconfig:"DB_MAX_CONN_IDLE_SECS" default:"300" validate:"gte=0"`
	DBMaxLifeSecs     int    `envconfig:"DB_MAX_CONN_LIFETIME_SECS" default:"3600" validate:"gte=0"`
	DBConnTimeoutSecs int    `envconfig:"DB_CONN_TIMEOUT_SECS" default:"10" validate:"gte=0"`
	DBStatementCache  int    `envconfig:"DB_STATEMENT_CACHE_CAPACITY" default:"256" validate:"gte=0"`

	JournalRetentionHours int `envconfig:"JOURNAL_RETENTION_HOURS" default:"168" validate:"gte=0"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load reads a .env file when present, then the environment, applying
// defaults and validation. Validation errors name the offending variable.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := newValidator().Struct(cfg); err != nil {
		return Config{}, describe(err)
	}
	return cfg, nil
}

// APIKeyConfigured is false when the key is empty or still the placeholder.
func (c Config) APIKeyConfigured() bool {
	key := strings.TrimSpace(c.TMDBAPIKey)
	return key != "" && key != APIKeyPlaceholder
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSecs) * time.Second
}

// JournalRetention is how long query events are kept. Zero disables pruning.
func (c Config) JournalRetention() time.Duration {
	return time.Duration(c.JournalRetentionHours) * time.Hour
}

func (c Config) TMDBTimeout() time.Duration {
	return time.Duration(c.TMDBTimeoutSecs) * time.Second
}

// Origins splits ALLOW_ORIGINS on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("envconfig"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" "+rule(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be numeric"
	case "url":
		return "must be an absolute URL"
	case "file":
		return "must name an existing file"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "ltefield":
		return "cannot exceed DB_MAX_CONNS"
	default:
		return "is invalid"
	}
}
