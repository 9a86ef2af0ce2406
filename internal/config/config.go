package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	ShopDomain        string
	ShopifyAPIVersion string
	ShopifyAdminToken string
	ShopifyAPISecret  string // app proxy signing secret

	ProxyMountPrefix string
	ProxyPathPrefix  string
	ProxySubpath     string
	SkipProxyVerify  bool
	ProxyDebug       bool

	AllowedOrigins []string
	DatabaseURL    string

	AdminHTTPTimeout time.Duration
	ShutdownTimeout  time.Duration
	MaxBodyBytes     int64
}

// Load reads the environment, picking up a .env file when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	mustEnv := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		AppPort:           getEnv("APP_PORT", "8080"),
		ShopDomain:        mustEnv("SHOPIFY_STORE_DOMAIN"),
		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2024-10"),
		ShopifyAdminToken: os.Getenv("SHOPIFY_ADMIN_TOKEN"),
		ShopifyAPISecret:  os.Getenv("SHOPIFY_API_SECRET"),
		ProxyMountPrefix:  getEnv("PROXY_MOUNT_PREFIX", "/proxy"),
		ProxyPathPrefix:   getEnv("PROXY_PATH_PREFIX", "apps"),
		ProxySubpath:      getEnv("PROXY_SUBPATH", "rfq"),
		AllowedOrigins:    splitList(os.Getenv("ALLOWED_ORIGINS")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
	}

	var errs []error
	var err error
	if cfg.SkipProxyVerify, err = getBool("SKIP_PROXY_VERIFY", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.ProxyDebug, err = getBool("PROXY_DEBUG", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.AdminHTTPTimeout, err = getDuration("ADMIN_HTTP_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		errs = append(errs, err)
	}

	if cfg.ShopifyAdminToken == "" && cfg.DatabaseURL == "" {
		missing = append(missing, "SHOPIFY_ADMIN_TOKEN (or DATABASE_URL)")
	}
	if cfg.ShopifyAPISecret == "" && !cfg.SkipProxyVerify {
		missing = append(missing, "SHOPIFY_API_SECRET")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing env: %s", strings.Join(missing, ", ")))
	}

	cfg.ProxyMountPrefix = "/" + strings.Trim(cfg.ProxyMountPrefix, "/")
	if cfg.ProxyMountPrefix == "/" {
		cfg.ProxyMountPrefix = ""
	}

	return cfg, errors.Join(errs...)
}

func (c Config) Addr() string {
	return ":" + c.AppPort
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
