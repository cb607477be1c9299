package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                      string          `yaml:"port"`
	Debug                     bool            `yaml:"debug"`
	DatabaseURL               string          `yaml:"database_url"`
	AdminSecret               string          `yaml:"admin_secret"`
	ResponseSigningPrivateKey string          `yaml:"response_signing_private_key"`
	ResponseSigningPublicKey  string          `yaml:"response_signing_public_key"`
	TrustedProxies            []string        `yaml:"trusted_proxies"`
	RateLimitAdmin            RateLimitConfig `yaml:"rate_limit_admin"`
	RateLimitCheck            RateLimitConfig `yaml:"rate_limit_check"`
	PurchaseURL               string          `yaml:"purchase_url"`
	UpdatesDir                string          `yaml:"updates_dir"`
	MigrationsPath            string          `yaml:"migrations_path"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Enabled           bool          `yaml:"enabled"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// Load reads the file named by MACMAN_CONFIG, or config.yaml in the working directory.
func Load() (Config, error) {
	path := os.Getenv("MACMAN_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath layers defaults, the YAML file (optional) and environment
// overrides, in that order, then fills in any missing secrets.
func LoadFromPath(path string) (Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("No config file found, using defaults and environment", "path", path)
	default:
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.LoadEnv()

	if err := cfg.ensureSigningKeys(); err != nil {
		return cfg, err
	}
	if err := cfg.ensureAdminSecret(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func NewDefaultConfig() Config {
	limits := RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		Enabled:           true,
		CacheSize:         5000,
		CacheTTL:          time.Hour,
	}
	return Config{
		Port:           "8080",
		PurchaseURL:    "https://macman.app/pricing",
		UpdatesDir:     "updates",
		MigrationsPath: "migrations",
		RateLimitAdmin: limits,
		RateLimitCheck: limits,
	}
}

// LoadEnv applies the non-empty environment overrides.
func (c *Config) LoadEnv() {
	overrides := map[string]*string{
		"PORT":                         &c.Port,
		"DATABASE_URL":                 &c.DatabaseURL,
		"ADMIN_SECRET":                 &c.AdminSecret,
		"RESPONSE_SIGNING_PRIVATE_KEY": &c.ResponseSigningPrivateKey,
		"RESPONSE_SIGNING_PUBLIC_KEY":  &c.ResponseSigningPublicKey,
		"PURCHASE_URL":                 &c.PurchaseURL,
		"UPDATES_DIR":                  &c.UpdatesDir,
		"MIGRATIONS_PATH":              &c.MigrationsPath,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

// Validate checks that the signing keys decode and belong together.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	priv, err := base64.StdEncoding.DecodeString(c.ResponseSigningPrivateKey)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return errors.New("response_signing_private_key is not a base64 Ed25519 private key")
	}
	pub, err := base64.StdEncoding.DecodeString(c.ResponseSigningPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return errors.New("response_signing_public_key is not a base64 Ed25519 public key")
	}
	if !ed25519.PublicKey(pub).Equal(ed25519.PrivateKey(priv).Public()) {
		return errors.New("response signing keys do not form a pair")
	}
	return nil
}

func (c *Config) ensureSigningKeys() error {
	if c.ResponseSigningPrivateKey != "" && c.ResponseSigningPublicKey != "" {
		return nil
	}
	if c.ResponseSigningPrivateKey != "" || c.ResponseSigningPublicKey != "" {
		return errors.New("response_signing_private_key and response_signing_public_key must be set together")
	}

	slog.Warn("Response signing keys not configured, generating an ephemeral pair. Clients pinned to a previous key will reject responses after restart.")

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate signing keys: %w", err)
	}
	c.ResponseSigningPrivateKey = base64.StdEncoding.EncodeToString(priv)
	c.ResponseSigningPublicKey = base64.StdEncoding.EncodeToString(pub)
	return nil
}

func (c *Config) ensureAdminSecret() error {
	if c.AdminSecret != "" {
		return nil
	}

	slog.Warn("Admin secret not configured, generating an ephemeral one. Admin tokens will stop working after restart.")

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate admin secret: %w", err)
	}
	c.AdminSecret = base64.StdEncoding.EncodeToString(secret)
	return nil
}
