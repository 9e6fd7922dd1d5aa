// Package redis provides the traced Redis client used to publish state
// machine snapshots for inspector tooling.
//
// The client wraps go-redis (github.com/redis/go-redis/v9) behind the narrow
// [Cmdable] interface, so only the hash and key commands the inspector needs
// are reachable. Every command opens an OpenTelemetry client span with
// database semantic attributes, and failures are returned as
// [*sserr.Error] values classified for retry decisions.
//
// # Configuration
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret(os.Getenv("STATEHOST_REDIS_PASSWORD"))
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// [Config] carries env, yaml and json tags and is loaded with the config
// package alongside the host configuration. When [Config.URI] is set it
// takes precedence over Host, Port, DB and Password.
//
// For unit tests, inject a mock with [NewFromClient].
package redis

import (
	"net/url"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// maxStatementTruncateLen caps the db.statement span attribute.
const maxStatementTruncateLen = 100

// Default connection settings.
const (
	DefaultHost          = "localhost"
	DefaultPort          = 6379
	DefaultDB            = 0
	DefaultPoolSize      = 10
	DefaultMinIdleConns  = 1
	DefaultMaxRetries    = 3
	DefaultDialTimeout   = 5 * time.Second
	DefaultReadTimeout   = 3 * time.Second
	DefaultWriteTimeout  = 3 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string that redacts itself when printed or serialized. Use
// [Secret.Value] to read the real value.
type Secret string

const redacted = "[REDACTED]"

// String returns "[REDACTED]".
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]" for %#v.
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText returns "[REDACTED]" so the secret never reaches JSON or
// YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the Redis connection configuration.
type Config struct {
	// URI is a redis:// or rediss:// connection string. When set, Host,
	// Port, DB and Password are ignored.
	URI string `json:"uri,omitempty" yaml:"uri" env:"URI"`

	Host string `json:"host,omitempty" yaml:"host" env:"HOST"`
	Port int    `json:"port,omitempty" yaml:"port" env:"PORT"`
	DB   int    `json:"db" yaml:"db" env:"DB"`

	// Password is never serialized.
	Password Secret `json:"-" yaml:"-" env:"PASSWORD"`

	PoolSize     int           `json:"pool_size,omitempty" yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns,omitempty" yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries" env:"MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	TLSEnabled   bool          `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"TLS_ENABLED"`
}

// DefaultConfig returns a Config pointing at a local Redis with default
// pool and timeout settings.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate applies defaults to zero-valued fields and checks the result.
// It returns a [sserr.CodeValidation] or [sserr.CodeValidationRange] error
// for the first invalid value.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeValidation, "redis: config URI is invalid")
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return sserr.Validationf(
				"redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	switch {
	case c.Port < 1 || c.Port > 65535:
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config port must be between 1 and 65535, got %d", c.Port)
	case c.DB < 0:
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config db must not be negative, got %d", c.DB)
	case c.PoolSize < 1:
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config pool_size must be >= 1, got %d", c.PoolSize)
	case c.MinIdleConns < 0 || c.MinIdleConns > c.PoolSize:
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config min_idle_conns must be between 0 and pool_size (%d), got %d",
			c.PoolSize, c.MinIdleConns)
	case c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return sserr.New(sserr.CodeValidationRange,
			"redis: config timeouts must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement shortens s to maxStatementTruncateLen runes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
