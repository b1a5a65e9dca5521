package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Backend     *Backend     `yaml:"backend"`
	Storage     *Storage     `yaml:"storage"`
	DB          *Postgres    `yaml:"database"`
	RMQ         *RabbitMQ    `yaml:"rabbitmq"`
	Invoices    *Invoices    `yaml:"invoices"`
	MockBackend *MockBackend `yaml:"mock_backend"`
	LogLevel    string       `yaml:"log_level"`
}

type Backend struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	DetailTimeout time.Duration `yaml:"detail_timeout"`
}

// Storage selects where the shopper's local state (cart, wishlist, session) lives.
type Storage struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisDB  int    `yaml:"redis_db"`
	Profile  string `yaml:"profile"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// Invoices points at the S3 compatible bucket printed invoices are archived to.
type Invoices struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type MockBackend struct {
	Port         int      `yaml:"port"`
	JWTSecret    string   `yaml:"jwt_secret"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// LoadConfig reads the yaml file at configPath, then applies environment overrides.
// A missing file is not an error: defaults plus environment are used instead.
func LoadConfig(configPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.fill()
	applyEnv(cfg)
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Backend: &Backend{
			BaseURL:       "http://localhost:8080/api",
			Timeout:       10 * time.Second,
			DetailTimeout: 8 * time.Second,
		},
		Storage: &Storage{
			Driver:  DriverFile,
			Path:    "storefront-state.json",
			Profile: "default",
		},
		DB: &Postgres{
			Host:     "localhost",
			Port:     "5432",
			User:     "bakery",
			Password: "bakery",
			Database: "storefront",
		},
		RMQ: &RabbitMQ{
			User:     "guest",
			Password: "guest",
			Host:     "localhost",
			Port:     "5672",
			Exchange: "notifications",
			Queue:    "storefront_order_updates",
		},
		Invoices: &Invoices{
			Region: "auto",
		},
		MockBackend: &MockBackend{
			Port:         8080,
			JWTSecret:    "dev-secret",
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LogLevel: "warn",
	}
}

// fill restores sections a partial yaml file left nil.
func (c *Config) fill() {
	d := Default()
	if c.Backend == nil {
		c.Backend = d.Backend
	}
	if c.Storage == nil {
		c.Storage = d.Storage
	}
	if c.DB == nil {
		c.DB = d.DB
	}
	if c.RMQ == nil {
		c.RMQ = d.RMQ
	}
	if c.Invoices == nil {
		c.Invoices = d.Invoices
	}
	if c.MockBackend == nil {
		c.MockBackend = d.MockBackend
	}
	if c.Backend.DetailTimeout <= 0 {
		c.Backend.DetailTimeout = d.Backend.DetailTimeout
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Storage.Profile == "" {
		c.Storage.Profile = d.Storage.Profile
	}
}

func applyEnv(c *Config) {
	c.Backend.BaseURL = getEnv("STOREFRONT_BACKEND_URL", c.Backend.BaseURL)
	c.LogLevel = getEnv("STOREFRONT_LOG_LEVEL", c.LogLevel)

	c.Storage.Driver = getEnv("STOREFRONT_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv("STOREFRONT_STORAGE_PATH", c.Storage.Path)
	c.Storage.RedisURL = getEnv("REDIS_URL", c.Storage.RedisURL)
	c.Storage.Profile = getEnv("STOREFRONT_PROFILE", c.Storage.Profile)

	c.DB.Host = getEnv("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = getEnv("POSTGRES_PORT", c.DB.Port)
	c.DB.User = getEnv("POSTGRES_USER", c.DB.User)
	c.DB.Password = getEnv("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Database = getEnv("POSTGRES_DBNAME", c.DB.Database)

	c.RMQ.Host = getEnv("RABBITMQ_HOST", c.RMQ.Host)
	c.RMQ.Port = getEnv("RABBITMQ_PORT_APP", c.RMQ.Port)
	c.RMQ.User = getEnv("RABBITMQ_USER", c.RMQ.User)
	c.RMQ.Password = getEnv("RABBITMQ_PASSWORD", c.RMQ.Password)
	c.RMQ.VHost = getEnv("RABBITMQ_VHOST", c.RMQ.VHost)

	c.Invoices.Endpoint = getEnv("R2_ENDPOINT", c.Invoices.Endpoint)
	c.Invoices.Bucket = getEnv("R2_BUCKET_NAME", c.Invoices.Bucket)
	c.Invoices.AccessKey = getEnv("R2_ACCESS_KEY", c.Invoices.AccessKey)
	c.Invoices.SecretKey = getEnv("R2_SECRET_KEY", c.Invoices.SecretKey)
	c.Invoices.PublicBaseURL = getEnv("R2_PUBLIC_BASE_URL", c.Invoices.PublicBaseURL)

	c.MockBackend.JWTSecret = getEnv("JWT_SECRET", c.MockBackend.JWTSecret)
	if port, err := strconv.Atoi(os.Getenv("MOCK_BACKEND_PORT")); err == nil {
		c.MockBackend.Port = port
	}
}

// Validate checks the fields the selected storage driver depends on.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url: %w", apperr.ErrFieldIsEmpty)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file driver: %w", apperr.ErrFieldIsEmpty)
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis driver: %w", apperr.ErrFieldIsEmpty)
		}
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return fmt.Errorf("database.host and database.database are required for the postgres driver: %w", apperr.ErrFieldIsEmpty)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}
	return nil
}

// InvoicesEnabled reports whether invoice archiving has somewhere to go.
func (c *Config) InvoicesEnabled() bool {
	return c.Invoices != nil && c.Invoices.Bucket != "" && c.Invoices.Endpoint != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
