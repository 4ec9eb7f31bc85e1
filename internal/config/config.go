package config

import (
	"crypto/subtle"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	ServerPort int
	LogLevel   string

	DatabaseURL string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string

	BcryptCost int

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
}

// Load reads configuration from the environment (.env in development) and
// validates it. Anything security-relevant that is missing or malformed is
// an error: the process must refuse to start rather than run with a
// weakened default.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not found, using system environment: %v", err)
	}

	cfg := &Config{
		LogLevel:      envDefault("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AccessSecret:  []byte(os.Getenv("JWT_ACCESS_SECRET")),
		RefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		Issuer:        os.Getenv("TOKEN_ISSUER"),
		Audience:      os.Getenv("TOKEN_AUDIENCE"),
		KafkaBrokers:  csv(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    envDefault("KAFKA_TOPIC", "auth-events"),
		ESURL:         os.Getenv("ES_URL"),
		ESUser:        os.Getenv("ES_USER"),
		ESPassword:    os.Getenv("ES_PASSWORD"),
	}

	var err error
	if cfg.ServerPort, err = optionalInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.AccessTTL, err = requiredDuration("ACCESS_TTL"); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = requiredDuration("REFRESH_TTL"); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = requiredInt("BCRYPT_COST"); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range [1, 65535]", c.ServerPort)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required env DATABASE_URL")
	}
	if len(c.AccessSecret) == 0 {
		return fmt.Errorf("missing required env JWT_ACCESS_SECRET")
	}
	if len(c.RefreshSecret) == 0 {
		return fmt.Errorf("missing required env JWT_REFRESH_SECRET")
	}
	// A shared secret would let a leaked access key forge refresh tokens.
	if subtle.ConstantTimeCompare(c.AccessSecret, c.RefreshSecret) == 1 {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("ACCESS_TTL must be shorter than REFRESH_TTL")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// optionalInt falls back to def only when the variable is unset. A value
// that is present but not a number is an error, never a silent default.
func optionalInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func requiredInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("missing required env %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func requiredDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("missing required env %s", key)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
