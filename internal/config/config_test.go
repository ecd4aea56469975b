package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	v := newViper()
	v.Set("store.driver", DriverMemory)

	cfg, err := decode(v)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 50*time.Second, cfg.Relay.ProbePeriod)
	assert.Equal(t, 0, cfg.Relay.CallRateLimit)
	assert.Equal(t, "doctor_patient_connections", cfg.Store.Table)
	assert.Equal(t, 5*time.Second, cfg.Store.QueryTimeout)
}

func TestPostgresNeedsDSN(t *testing.T) {
	_, err := decode(newViper())
	assert.Error(t, err)

	v := newViper()
	v.Set("store.dsn", "postgres://localhost/relay?sslmode=disable")
	cfg, err := decode(v)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	v := newViper()
	v.Set("store.driver", DriverMemory)
	cfg, err := decode(v)
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Relay.ProbePeriod = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Store.Driver = "redis"
	assert.Error(t, bad.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("RELAY_PORT", "6001")
	t.Setenv("RELAY_STORE_DRIVER", DriverMemory)
	t.Setenv("RELAY_PROBE_PERIOD", "2s")
	t.Setenv("RELAY_CALL_RATE_LIMIT", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Relay.ProbePeriod)
	assert.Equal(t, 4, cfg.Relay.CallRateLimit)
}

func TestSeedRelationships(t *testing.T) {
	v := newViper()
	v.Set("store.driver", DriverMemory)
	v.Set("store.relationships", []map[string]any{
		{"caller": "doc-1", "callee": "pat-1", "status": "connected"},
	})

	cfg, err := decode(v)
	require.NoError(t, err)
	require.Len(t, cfg.Store.Relationships, 1)
	assert.Equal(t, Relationship{Caller: "doc-1", Callee: "pat-1", Status: "connected"}, cfg.Store.Relationships[0])
}
