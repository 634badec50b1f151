package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.24, cfg.Tax.ShortTermRate, 1e-9)
	assert.InDelta(t, 0.15, cfg.Tax.LongTermRate, 1e-9)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TRADELEDGER_SERVER_PORT", "9090")
	t.Setenv("TRADELEDGER_LOGGING_LEVEL", "debug")
	t.Setenv("TRADELEDGER_TAX_SHORT_TERM_RATE", "0.37")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.InDelta(t, 0.37, cfg.Tax.ShortTermRate, 1e-9)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "port out of range",
			env:    map[string]string{"TRADELEDGER_SERVER_PORT": "70000"},
			errMsg: "port",
		},
		{
			name:   "negative tax rate",
			env:    map[string]string{"TRADELEDGER_TAX_LONG_TERM_RATE": "-0.1"},
			errMsg: "tax rate",
		},
		{
			name:   "tax rate of one or more",
			env:    map[string]string{"TRADELEDGER_TAX_SHORT_TERM_RATE": "1.0"},
			errMsg: "tax rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestUnknownLogFormatFallsBackToJSON(t *testing.T) {
	t.Setenv("TRADELEDGER_LOGGING_FORMAT", "xml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}
