package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":           "www.example:9000",
		"database_dsn":        "relay.db",
		"steam_api_key":       "json-key",
		"scratch_dir":         "/var/tmp/demos",
		"discovery_interval":  "10m",
		"resolution_interval": "20s",
		"pipeline_interval":   "45s",
		"walker_max_steps":    25,
		"bridge_addr":         "bot:7300",
		"event_buffer_size":   8,
		"uploader":            "s3",
		"s3_access_key":       "user",
		"s3_secret_key":       "password",
		"s3_bucket":           "bucket",
		"s3_region":           "region",
		"s3_base_endpoint":    "base_endpoint",
		"redis_addr":          "redis:6379",
		"history_cache_ttl":   "2m",
		"otlp_endpoint":       "jaeger:4318",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "relay.db", cfg.DatabaseDSN)
		assert.Equal(t, "json-key", cfg.SteamAPIKey)
		assert.Equal(t, "/var/tmp/demos", cfg.ScratchDir)
		assert.Equal(t, 10*time.Minute, cfg.DiscoveryInterval)
		assert.Equal(t, 20*time.Second, cfg.ResolutionInterval)
		assert.Equal(t, 45*time.Second, cfg.PipelineInterval)
		assert.Equal(t, 25, cfg.WalkerMaxSteps)
		assert.Equal(t, "bot:7300", cfg.BridgeAddr)
		assert.Equal(t, 8, cfg.EventBufferSize)
		assert.Equal(t, UploaderS3, cfg.Uploader)
		assert.Equal(t, "user", cfg.S3AccessKey)
		assert.Equal(t, "password", cfg.S3SecretKey)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 2*time.Minute, cfg.HistoryCacheTTL)
		assert.Equal(t, "jaeger:4318", cfg.OTLPEndpoint)
	})

	t.Run("missing fields keep current values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"http_addr": "api:8081",
		})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "api:8081", cfg.HTTPAddr)
		assert.Equal(t, 15*time.Minute, cfg.DiscoveryInterval)
		assert.Equal(t, UploaderTelegram, cfg.Uploader)
	})

	t.Run("no config flag is a no-op", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
	})

	t.Run("panics on unreadable file", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "missing.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
