package config

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/spendsmart/internal/common"
)

// Config holds runtime settings for the SpendSmart CLI.
//
// Fields:
//   - ServerURL: base URL of the finance backend REST API.
//   - DatabasePath: SQLite file holding the persisted session.
//   - SessionTTL: how long a signed-in session lives before it is expired.
//   - RequestTimeout: per-request timeout for backend calls.
//   - SessionSecret: optional secret; when set the stored auth token is sealed.
//   - LogLevel / LogFormat: slog level (debug|info|warn|error) and format (text|json).
type Config struct {
	ServerURL      string        `env:"SERVER_URL"`
	DatabasePath   string        `env:"DB_PATH"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	LogLevel       string        `env:"LOG_LEVEL"`
	LogFormat      string        `env:"LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.DatabasePath = "spendsmart.db"
	c.SessionTTL = common.DefaultSessionTTL
	c.RequestTimeout = 15 * time.Second
	c.SessionSecret = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerURL, validation.Required, is.URL),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	)
}

// Load builds a Config from args (without the program name): defaults first,
// then the JSON file named by -c/-config, then SPENDSMART_* environment
// variables (a local .env file is honoured), then command-line flags.
// Later sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load applied to the process command line.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
