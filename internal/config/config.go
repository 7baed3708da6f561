// Package config provides functionality for managing configuration options
// for the catalog server using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DataFile is the JSON file backing the resource collections.
	DataFile string `json:"data_file"`

	// SeedFile optionally overrides the embedded seed database.
	SeedFile string `json:"seed_file"`

	// DatabaseDSN switches storage to PostgreSQL when set.
	DatabaseDSN string `json:"database_dsn"`

	// Reset replaces the stored data with the seed before serving.
	Reset bool `json:"reset"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:3001", "run on ip:port server")
	flag.StringVar(&options.DataFile, "f", "db.json", "path to the JSON data file")
	flag.StringVar(&options.SeedFile, "s", "", "path to a seed file (embedded seed when empty)")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.BoolVar(&options.Reset, "reset", false, "reset data to the seed on start")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. A .env file in the working directory is loaded
// first. Environment variables take precedence over the config file, which
// takes precedence over flags.
func Parse() *Options {
	flag.Parse()

	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	applyEnv(options)

	return options
}

// applyEnv overrides options with the environment variables that are set.
func applyEnv(o *Options) {
	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		o.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		o.DatabaseDSN = dsn
	}
	if dataFile := os.Getenv("DATA_FILE"); dataFile != "" {
		o.DataFile = dataFile
	}
	if seedFile := os.Getenv("SEED_FILE"); seedFile != "" {
		o.SeedFile = seedFile
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		o.LogLevel = level
	}
}
