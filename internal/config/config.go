package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI         string
	MongoDB          string
	UsersCollection  string
	TokensCollection string

	// FieldSecret is the long-lived secret the field-encryption key is
	// derived from. Never logged, never stored derived.
	FieldSecret string

	JWTIssuer string
	// JWTSeed deterministically derives the Ed25519 signing key so access
	// tokens survive restarts. Empty means an ephemeral per-process key.
	JWTSeed    string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	ListenAddr string

	RefreshPerMinute float64
	RefreshBurst     int
}

func (c *Config) setDefaults() {
	if c.MongoDB == "" {
		c.MongoDB = "health"
	}
	if c.UsersCollection == "" {
		c.UsersCollection = "users"
	}
	if c.TokensCollection == "" {
		c.TokensCollection = "refresh_tokens"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "health-backend"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.RefreshPerMinute <= 0 {
		c.RefreshPerMinute = 6
	}
	if c.RefreshBurst <= 0 {
		c.RefreshBurst = 3
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

// FromEnv builds the config from the environment. MONGO_URI and FIELD_SECRET
// are required; everything else has defaults.
func FromEnv() (*Config, error) {
	c := &Config{
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          os.Getenv("MONGO_DB"),
		UsersCollection:  os.Getenv("USERS_COLLECTION"),
		TokensCollection: os.Getenv("TOKENS_COLLECTION"),
		FieldSecret:      os.Getenv("FIELD_SECRET"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
		JWTSeed:          os.Getenv("JWT_SEED"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
	}
	var err error
	if c.AccessTTL, err = envDuration("ACCESS_TTL"); err != nil {
		return nil, err
	}
	if c.RefreshTTL, err = envDuration("REFRESH_TTL"); err != nil {
		return nil, err
	}
	if v := os.Getenv("REFRESH_PER_MINUTE"); v != "" {
		if c.RefreshPerMinute, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, errors.New("REFRESH_PER_MINUTE is not a number")
		}
	}
	if v := os.Getenv("REFRESH_BURST"); v != "" {
		if c.RefreshBurst, err = strconv.Atoi(v); err != nil {
			return nil, errors.New("REFRESH_BURST is not a number")
		}
	}
	c.setDefaults()

	if c.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if c.FieldSecret == "" {
		return nil, errors.New("FIELD_SECRET is required")
	}
	return c, nil
}

func envDuration(name string) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(name + " is not a duration")
	}
	return d, nil
}
