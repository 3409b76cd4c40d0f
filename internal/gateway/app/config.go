package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	Env       string `env:"ENV" envDefault:"dev"`
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Issuer is the iss claim on every token the gateway signs.
	Issuer string `env:"AUTH_ISSUER" envDefault:"authgate"`

	// Algorithm selects the signing codec: HS256 derives a key from the
	// master secret, EdDSA loads a PEM keypair from SigningKeyFile.
	Algorithm      string `env:"AUTH_ALGORITHM" envDefault:"HS256"`
	MasterSecret   string `env:"AUTH_MASTER_SECRET"`
	SigningKeyFile string `env:"AUTH_SIGNING_KEY_FILE"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// HandshakeMode selects how the OAuth state round trip is protected:
	// "store" keeps single-use records in the key-value store, "sealed"
	// carries an HMAC-sealed state with no server-side record.
	HandshakeMode   string        `env:"HANDSHAKE_MODE" envDefault:"store"`
	HandshakeTTL    time.Duration `env:"HANDSHAKE_TTL" envDefault:"10m"`
	IdentityLockTTL time.Duration `env:"IDENTITY_LOCK_TTL" envDefault:"30s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseFile string `env:"DATABASE_FILE" envDefault:"authgate.db"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig parses the environment and validates the combinations that
// cannot be defaulted.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MasterSecret == "" {
		return errors.New("AUTH_MASTER_SECRET is required")
	}
	switch c.Algorithm {
	case "HS256":
	case "EdDSA":
		if c.SigningKeyFile == "" {
			return errors.New("AUTH_SIGNING_KEY_FILE is required for EdDSA")
		}
	default:
		return fmt.Errorf("unsupported signing algorithm %q", c.Algorithm)
	}
	switch c.HandshakeMode {
	case "store", "sealed":
	default:
		return fmt.Errorf("unsupported handshake mode %q", c.HandshakeMode)
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" || c.GoogleRedirectURL == "" {
		return errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL are required")
	}
	return nil
}
