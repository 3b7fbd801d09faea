package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Cascade file policies applied when a visit is deleted.
const (
	CascadeRetainFiles = "retain"
	CascadeDeleteFiles = "delete"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBHost         string        `mapstructure:"DB_HOST"`
	DBPort         string        `mapstructure:"DB_PORT"`
	DBUser         string        `mapstructure:"DB_USER"`
	DBPassword     string        `mapstructure:"DB_PASSWORD"`
	DBName         string        `mapstructure:"DB_NAME"`
	DBSSLMode      string        `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBTxTimeout    time.Duration `mapstructure:"DB_TX_TIMEOUT"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`

	UploadDir          string        `mapstructure:"UPLOAD_DIR"`
	UploadMaxFileSize  int64         `mapstructure:"UPLOAD_MAX_FILE_SIZE"`
	UploadMaxFiles     int           `mapstructure:"UPLOAD_MAX_FILES"`
	FilesCascadePolicy string        `mapstructure:"FILES_CASCADE_POLICY"`
	OrphanGracePeriod  time.Duration `mapstructure:"ORPHAN_GRACE_PERIOD"`
	// RetainedFilesTTL is how long the cleanup job keeps unreferenced files
	// under the retain policy. Zero keeps them until removed by hand.
	RetainedFilesTTL   time.Duration `mapstructure:"RETAINED_FILES_TTL"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	CatalogFile string `mapstructure:"CATALOG_FILE"`
}

var keys = []string{
	"PORT", "ENV",
	"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_TX_TIMEOUT",
	"REQUEST_TIMEOUT", "ALLOWED_ORIGINS",
	"UPLOAD_DIR", "UPLOAD_MAX_FILE_SIZE", "UPLOAD_MAX_FILES", "FILES_CASCADE_POLICY", "ORPHAN_GRACE_PERIOD",
	"RETAINED_FILES_TTL",
	"RABBITMQ_URL",
	"LOG_LEVEL", "LOG_FORMAT",
	"CATALOG_FILE",
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables only")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_TX_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOAD_MAX_FILES", 10)
	v.SetDefault("FILES_CASCADE_POLICY", CascadeRetainFiles)
	v.SetDefault("ORPHAN_GRACE_PERIOD", "1h")
	v.SetDefault("RETAINED_FILES_TTL", "0s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CATALOG_FILE", "catalog.yml")

	// Bind explicitly so Unmarshal sees keys that only exist in the environment.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.FilesCascadePolicy = strings.ToLower(strings.TrimSpace(cfg.FilesCascadePolicy))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && (c.DBHost == "" || c.DBUser == "" || c.DBName == "") {
		return fmt.Errorf("DATABASE_URL or DB_HOST, DB_USER and DB_NAME are required")
	}
	switch c.FilesCascadePolicy {
	case CascadeRetainFiles, CascadeDeleteFiles:
	default:
		return fmt.Errorf("FILES_CASCADE_POLICY must be %q or %q, got %q",
			CascadeRetainFiles, CascadeDeleteFiles, c.FilesCascadePolicy)
	}
	if c.UploadMaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.UploadMaxFiles <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILES must be positive")
	}
	if c.DBTxTimeout <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT must be positive")
	}
	if c.RetainedFilesTTL < 0 {
		return fmt.Errorf("RETAINED_FILES_TTL must not be negative")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Origins splits ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
