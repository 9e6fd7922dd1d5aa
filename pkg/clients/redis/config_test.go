package redis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// ===========================================================================
// Secret Tests
// ===========================================================================

// TestSecret_Redaction verifies that secrets never print their value.
func TestSecret_Redaction(t *testing.T) {
	t.Parallel()
	s := Secret("super-secret-password")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", s.GoString())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v %#v", s, s)[:10])
	assert.Equal(t, "super-secret-password", s.Value())

	data, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(data))
}

// TestConfig_JSONOmitsPassword verifies that the password is excluded from
// serialized configs.
func TestConfig_JSONOmitsPassword(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Password = Secret("hunter2")
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "hunter2"))
}

// ===========================================================================
// Validate Tests
// ===========================================================================

// TestDefaultConfig verifies the default values.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	require.NoError(t, cfg.Validate())
}

// TestConfig_Validate_AppliesDefaults verifies that an empty config is
// completed with defaults.
func TestConfig_Validate_AppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
}

// TestConfig_Validate_Invalid verifies range checks.
func TestConfig_Validate_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string]Config{
		"port negative":  {Port: -1},
		"port too high":  {Port: 70000},
		"db negative":    {DB: -1},
		"pool negative":  {PoolSize: -2},
		"idle over pool": {PoolSize: 2, MinIdleConns: 3},
		"idle negative":  {MinIdleConns: -1},
		"read timeout":   {ReadTimeout: -time.Second},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, sserr.HasCode(err, sserr.CodeValidationRange), "got %v", err)
		})
	}
}

// TestConfig_Validate_URI verifies URI scheme checks.
func TestConfig_Validate_URI(t *testing.T) {
	t.Parallel()
	require.NoError(t, (&Config{URI: "redis://localhost:6379/0"}).Validate())
	require.NoError(t, (&Config{URI: "rediss://cache:6380"}).Validate())

	err := (&Config{URI: "http://localhost"}).Validate()
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))

	err = (&Config{URI: "://bad"}).Validate()
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))

	// Structured fields are not checked when a URI is set.
	require.NoError(t, (&Config{URI: "redis://localhost", Port: -1}).Validate())
}

// ===========================================================================
// truncateStatement Tests
// ===========================================================================

// TestTruncateStatement verifies rune-aware truncation.
func TestTruncateStatement(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "HGETALL k", truncateStatement("HGETALL k"))
	assert.Equal(t, "", truncateStatement(""))

	exact := strings.Repeat("a", maxStatementTruncateLen)
	assert.Equal(t, exact, truncateStatement(exact))

	long := strings.Repeat("é", maxStatementTruncateLen+5)
	got := truncateStatement(long)
	assert.Equal(t, strings.Repeat("é", maxStatementTruncateLen)+"...", got)
}
