package config

import (
	"flag"
	"os"

	"github.com/avoronov/demorelay/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-k string   Steam Web API key
//	-s string   scratch directory for demo files
//	-b string   coordinator bridge address (host:port)
//	-u string   uploader kind ("telegram" or "s3")
//	-r string   Redis address; empty disables the history cache
//	-o string   OTLP trace endpoint; empty disables tracing
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-s", "-b", "-u", "-r", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SteamAPIKey, "k", config.SteamAPIKey, "Steam Web API key")
	fs.StringVar(&config.ScratchDir, "s", config.ScratchDir, "scratch directory")
	fs.StringVar(&config.BridgeAddr, "b", config.BridgeAddr, "coordinator bridge address")
	fs.StringVar(&config.Uploader, "u", config.Uploader, "uploader kind")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.OTLPEndpoint, "o", config.OTLPEndpoint, "OTLP trace endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
