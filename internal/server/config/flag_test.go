package config

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name     string
		args     []string
		expected func(*testing.T, *Config)
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-k", "steam-key",
				"-s", "/scratch", "-b", "bot:7301", "-u", "s3",
				"-r", "redis:6379", "-o", "jaeger:4318",
			},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, "127.0.0.1:9090", c.HTTPAddr)
				assert.Equal(t, "db", c.DatabaseDSN)
				assert.Equal(t, "steam-key", c.SteamAPIKey)
				assert.Equal(t, "/scratch", c.ScratchDir)
				assert.Equal(t, "bot:7301", c.BridgeAddr)
				assert.Equal(t, UploaderS3, c.Uploader)
				assert.Equal(t, "redis:6379", c.RedisAddr)
				assert.Equal(t, "jaeger:4318", c.OTLPEndpoint)
			},
		},
		{
			name: "unknown flags are filtered out",
			args: []string{"cmd", "-a", ":9000", "-unknown", "x"},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, ":9000", c.HTTPAddr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)
			os.Args = tt.args

			config := &Config{}
			require.NotPanics(t, func() { parseFlags(config) })
			tt.expected(t, config)
		})
	}
}
