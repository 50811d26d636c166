package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unsubstantiated-Script/chonker-chopper/config"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{Database: "chonker"},
			want: "postgres://localhost:5432/chonker?sslmode=disable",
		},
		{
			name: "credentials are escaped",
			cfg: config.PostgresConfig{
				Host: "db", Port: 6543, User: "app", Password: "p@ss/word",
				Database: "chonker", SSLMode: "require",
			},
			want: "postgres://app:p%40ss%2Fword@db:6543/chonker?sslmode=require",
		},
		{
			name: "user without password",
			cfg:  config.PostgresConfig{User: "app", Database: "chonker"},
			want: "postgres://app@localhost:5432/chonker?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnString(tt.cfg))
		})
	}
}

func TestPoolConfig_AppliesLimits(t *testing.T) {
	poolCfg, err := PoolConfig(config.PostgresConfig{
		Database:          "chonker",
		MaxConns:          12,
		MinConns:          2,
		MaxConnLifetime:   "30m",
		MaxConnIdleTime:   "bogus",
		HealthCheckPeriod: "15s",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(12), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, 15*time.Second, poolCfg.HealthCheckPeriod)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "mysql"}}
	_, err := Open(cfg)
	assert.Error(t, err)
}
