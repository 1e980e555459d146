package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every setting the catalog API and the index CLI read from the environment.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	StoreDriver    string
	TreeStrategy   string
	DatabaseURL    string
	DBName         string
	Collection     string
	RedisURL       string
	Secret         string
	RequestTimeout time.Duration
	RateLimit      uint

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// Load reads the configuration and validates it for serving the API.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env when present, then the process environment, without validation.
func Read() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "load %s", envFile)
	}

	cfg := &Config{
		Port:         envOr("PORT", "8080"),
		GinMode:      envOr("GIN_MODE", "debug"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		StoreDriver:  envOr("STORE_DRIVER", "mongo"),
		TreeStrategy: envOr("TREE_STRATEGY", "bulk"),
		DatabaseURL:  envOr("DATABASE_URL", "mongodb://localhost:27017"),
		DBName:       envOr("DB_NAME", "khoomi"),
		Collection:   envOr("CATEGORY_COLLECTION", "Category"),
		RedisURL:     os.Getenv("REDIS_URL"),
		Secret:       os.Getenv("SECRET"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUDNAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: envOr("CLOUDINARY_UPLOAD_FOLDER", "categories"),
	}

	timeout, err := time.ParseDuration(envOr("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, errors.Wrap(err, "parse REQUEST_TIMEOUT")
	}
	cfg.RequestTimeout = timeout

	limit, err := strconv.ParseUint(envOr("RATE_LIMIT", "5"), 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "parse RATE_LIMIT")
	}
	cfg.RateLimit = uint(limit)

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		return errors.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.TreeStrategy {
	case "bulk", "walk":
	default:
		return errors.Errorf("unknown TREE_STRATEGY %q", c.TreeStrategy)
	}
	if c.Secret == "" {
		return errors.New("SECRET is required to verify bearer tokens")
	}
	return nil
}

// CloudinaryEnabled reports whether category image uploads can be served.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
