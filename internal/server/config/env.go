package config

import "os"

// parseEnv overlays secrets and connection settings from environment
// variables. Only variables that are actually set override the defaults.
func parseEnv(config *Config) {
	overlay := map[string]*string{
		"DATABASE_DSN":       &config.DatabaseDSN,
		"STEAM_API_KEY":      &config.SteamAPIKey,
		"TELEGRAM_BOT_TOKEN": &config.TelegramBotToken,
		"TELEGRAM_CHAT_ID":   &config.TelegramChatID,
		"S3_ACCESS_KEY":      &config.S3AccessKey,
		"S3_SECRET_KEY":      &config.S3SecretKey,
		"REDIS_PASSWORD":     &config.RedisPassword,
	}
	for name, field := range overlay {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}
}
