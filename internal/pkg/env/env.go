// Package env resolves configuration from an optional .env file with the
// process environment as fallback.
package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the values read by SetupEnvFile. It stays nil when the process
// environment is the only source, which is how tests and containers run.
var Env map[string]string

// envFileCandidates covers launching from the repo root and from cmd/*.
var envFileCandidates = []string{
	".env",
	"../../.env",
	"../../../.env",
}

// GetEnv looks key up in the loaded .env values, then in the process
// environment, and returns def when neither has it.
func GetEnv(key, def string) string {
	if v, ok := Env[key]; ok {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupEnvFile loads the first .env file found among the candidate paths
// into Env. Panics when none exists, since a local run without one is a
// misconfiguration.
func SetupEnvFile() {
	for _, path := range envFileCandidates {
		if vals, err := godotenv.Read(path); err == nil {
			Env = vals
			return
		}
	}
	panic("No .env file found in any of the expected locations")
}

// IsDev reports whether the app is running with APP_ENV=dev.
func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
