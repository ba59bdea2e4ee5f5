package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidStoreDriver     = errors.New("store.driver must be 'sqlite' or 'postgres'")
	ErrMissingSQLitePath      = errors.New("sqlite path is required when store.driver is 'sqlite'")
	ErrMissingDefaultArea     = errors.New("parser.default_area is required")
	ErrInvalidHeaderWindow    = errors.New("parser.header_window must be at least 2")
	ErrInvalidOfficeLookahead = errors.New("parser.office_lookahead must be at least 1")
	ErrInvalidConcurrency     = errors.New("max concurrency must be at least 1")
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreDriver string
	SQLitePath  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	PageSettleMs   int
	ChromeBin      string

	HTTPPort string
	LogLevel string

	FluentHost string
	FluentPort int
	FluentTag  string

	CSVOutputPath string

	Parser ParserConfig
}

// ParserConfig tunes the listing scanner. The defaults match the portal
// layout the scanner was written against.
type ParserConfig struct {
	DefaultArea     string `yaml:"default_area"`
	HeaderWindow    int    `yaml:"header_window"`
	OfficeLookahead int    `yaml:"office_lookahead"`
}

// DefaultParserConfig returns the built-in scanner settings.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		DefaultArea:     "47",
		HeaderWindow:    15,
		OfficeLookahead: 4,
	}
}

// Load reads the .env file and returns a populated Config struct. When
// PARSER_CONFIG names a YAML file its parser section overrides the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/boohill.sqlite"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "boohill"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "boohill"),
		PostgresDB:       getEnv("POSTGRES_DB", "boohill"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		PageSettleMs:   getEnvInt("PAGE_SETTLE_MS", 4000),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FluentHost: getEnv("FLUENT_HOST", ""),
		FluentPort: getEnvInt("FLUENT_PORT", 24224),
		FluentTag:  getEnv("FLUENT_TAG", "boohill.trace"),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),

		Parser: DefaultParserConfig(),
	}

	if path := os.Getenv("PARSER_CONFIG"); path != "" {
		pc, err := LoadParserConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Parser = *pc
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadParserConfig reads a YAML file of the form
//
//	parser:
//	  default_area: "47"
//	  header_window: 15
//	  office_lookahead: 4
//
// Keys missing from the file keep their default values.
func LoadParserConfig(path string) (*ParserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parser config: %w", err)
	}

	doc := struct {
		Parser ParserConfig `yaml:"parser"`
	}{Parser: DefaultParserConfig()}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := doc.Parser.Validate(); err != nil {
		return nil, fmt.Errorf("parser config validation failed: %w", err)
	}
	return &doc.Parser, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return ErrMissingSQLitePath
		}
	case "postgres":
	default:
		return ErrInvalidStoreDriver
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	return c.Parser.Validate()
}

// Validate checks the scanner settings.
func (p *ParserConfig) Validate() error {
	if p.DefaultArea == "" {
		return ErrMissingDefaultArea
	}
	if p.HeaderWindow < 2 {
		return ErrInvalidHeaderWindow
	}
	if p.OfficeLookahead < 1 {
		return ErrInvalidOfficeLookahead
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
