package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "json format", mutate: func(c *Config) { c.LogFormat = "json" }},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "invalid log format"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log level"},
		{name: "negative port", mutate: func(c *Config) { c.HealthcheckPort = -1 }, wantErr: "invalid healthcheck port"},
		{name: "port too high", mutate: func(c *Config) { c.HealthcheckPort = 70000 }, wantErr: "invalid healthcheck port"},
		{name: "zero timeout", mutate: func(c *Config) { c.ConfirmTimeout = 0 }, wantErr: "confirm timeout"},
		{name: "negative block time", mutate: func(c *Config) { c.BlockTime = -time.Second }, wantErr: "block time"},
		{name: "missing token name", mutate: func(c *Config) { c.TokenName = "" }, wantErr: "token name"},
		{
			name: "token name not needed with workflow file",
			mutate: func(c *Config) {
				c.TokenName = ""
				c.WorkflowPath = "workflows"
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			got, err := NewConfig(cfg)

			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cfg, *got)
		})
	}
}
