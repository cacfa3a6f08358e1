package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/okunev/blogauth/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction

	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Session store backend: postgres (default) or redis
	SessionBackend string

	// Redis address, used when the session backend is redis
	RedisAddr string

	// Signing keys for the two token purposes
	// Independent on purpose: an access token must never verify as a
	// refresh token or vice versa
	AccessSecret  string
	RefreshSecret string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		Environment:    defaultEnvironment,
		ListenAddr:     defaultListenAddr,
		SessionBackend: BackendPostgres,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	// Parse duration if value not empty, ignore unparsable values
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SESSION_BACKEND":    setString(&c.SessionBackend),
		"REDIS_ADDR":         setString(&c.RedisAddr),
		"ACCESS_SECRET_KEY":  setString(&c.AccessSecret),
		"REFRESH_SECRET_KEY": setString(&c.RefreshSecret),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":  setDuration(&c.RefreshTTL),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("blogauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.SessionBackend, "session-backend", c.SessionBackend, "Session store backend (postgres, redis)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for the redis session backend")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing key")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing key")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate checks the startup invariants that must fail the process,
// not a request
func (c *Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("both access and refresh secret keys must be configured")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh secret keys must differ")
	}

	switch c.SessionBackend {
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database DSN must be configured")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address must be configured for the redis session backend")
		}
		if c.DatabaseDSN == "" {
			return errors.New("database DSN must be configured (users live in postgres)")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}

	return nil
}
