// Package config reads the process's environment into a Config struct.
// Grounded on the envOr/envIntOr helpers in
// registry/cmd/registry/main.go: plain os.Getenv reads with documented
// defaults, no flag parsing or config file format — spec.md treats
// "configuration loading" as a non-goal collaborator, so the core only
// ever consumes the resulting struct.
package config

import "os"

// Config holds everything cmd/ripd needs to assemble the session
// control plane.
type Config struct {
	// DataDir is RIP_DATA_DIR: the root for the event log
	// ({DataDir}/events.jsonl) and the snapshots directory
	// ({DataDir}/snapshots/). Defaults to "./data".
	DataDir string
	// RedisAddr, if set, enables the RedisBroadcaster domain-stack
	// supplement for multi-process deployments.
	RedisAddr string
	// MongoURI, if set, enables the MongoSnapshotIndex domain-stack
	// supplement; MongoDatabase names its database.
	MongoURI      string
	MongoDatabase string
}

// Load reads Config from the environment, applying documented defaults.
func Load() Config {
	return Config{
		DataDir:       envOr("RIP_DATA_DIR", "./data"),
		RedisAddr:     os.Getenv("RIP_REDIS_ADDR"),
		MongoURI:      os.Getenv("RIP_MONGO_URI"),
		MongoDatabase: envOr("RIP_MONGO_DATABASE", "rip"),
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
