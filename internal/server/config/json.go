package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avoronov/demorelay/internal/flagx"
	"github.com/avoronov/demorelay/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SteamAPIKey        string         `json:"steam_api_key"`
	ScratchDir         string         `json:"scratch_dir"`
	DiscoveryInterval  timex.Duration `json:"discovery_interval"`
	ResolutionInterval timex.Duration `json:"resolution_interval"`
	PipelineInterval   timex.Duration `json:"pipeline_interval"`
	WalkerMaxSteps     int            `json:"walker_max_steps"`
	BridgeAddr         string         `json:"bridge_addr"`
	EventBufferSize    int            `json:"event_buffer_size"`
	Uploader           string         `json:"uploader"`
	TelegramBotToken   string         `json:"telegram_bot_token"`
	TelegramChatID     string         `json:"telegram_chat_id"`
	TelegramAPIBase    string         `json:"telegram_api_base"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	RedisAddr          string         `json:"redis_addr"`
	RedisPassword      string         `json:"redis_password"`
	RedisDB            int            `json:"redis_db"`
	HistoryCacheTTL    timex.Duration `json:"history_cache_ttl"`
	OTLPEndpoint       string         `json:"otlp_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flag. When
// neither is set, no JSON file is loaded. Fields absent from the file keep
// their current values. If the file cannot be read or contains invalid
// JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlayString(&config.HTTPAddr, c.HTTPAddr)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.SteamAPIKey, c.SteamAPIKey)
	overlayString(&config.ScratchDir, c.ScratchDir)
	overlayDuration(&config.DiscoveryInterval, c.DiscoveryInterval)
	overlayDuration(&config.ResolutionInterval, c.ResolutionInterval)
	overlayDuration(&config.PipelineInterval, c.PipelineInterval)
	overlayInt(&config.WalkerMaxSteps, c.WalkerMaxSteps)
	overlayString(&config.BridgeAddr, c.BridgeAddr)
	overlayInt(&config.EventBufferSize, c.EventBufferSize)
	overlayString(&config.Uploader, c.Uploader)
	overlayString(&config.TelegramBotToken, c.TelegramBotToken)
	overlayString(&config.TelegramChatID, c.TelegramChatID)
	overlayString(&config.TelegramAPIBase, c.TelegramAPIBase)
	overlayString(&config.S3AccessKey, c.S3AccessKey)
	overlayString(&config.S3SecretKey, c.S3SecretKey)
	overlayString(&config.S3Bucket, c.S3Bucket)
	overlayString(&config.S3Region, c.S3Region)
	overlayString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlayString(&config.RedisAddr, c.RedisAddr)
	overlayString(&config.RedisPassword, c.RedisPassword)
	overlayInt(&config.RedisDB, c.RedisDB)
	overlayDuration(&config.HistoryCacheTTL, c.HistoryCacheTTL)
	overlayString(&config.OTLPEndpoint, c.OTLPEndpoint)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
