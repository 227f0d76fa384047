// Package config loads runtime configuration from the environment and
// delivery profiles from YAML files.
package config

import "os"

// Config holds engine configuration.
type Config struct {
	LogLevel string
	// DatabaseURL selects Postgres for the outbox when set. Local state
	// stays in SQLite at DatabasePath either way.
	DatabaseURL     string
	DatabasePath    string
	BlobDir         string
	ParserURL       string
	ProfilesDir     string
	RedisAddr       string
	OTLPEndpoint    string
	HandshakeSecret string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("SEALPOST_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbPath := os.Getenv("SEALPOST_DB_PATH")
	if dbPath == "" {
		dbPath = "sealpost.db"
	}

	blobDir := os.Getenv("SEALPOST_BLOB_DIR")
	if blobDir == "" {
		blobDir = "blobs"
	}

	parserURL := os.Getenv("SEALPOST_PARSER_URL")
	if parserURL == "" {
		parserURL = "http://localhost:9120"
	}

	profilesDir := os.Getenv("SEALPOST_PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	return &Config{
		LogLevel:        logLevel,
		DatabaseURL:     os.Getenv("SEALPOST_DATABASE_URL"),
		DatabasePath:    dbPath,
		BlobDir:         blobDir,
		ParserURL:       parserURL,
		ProfilesDir:     profilesDir,
		RedisAddr:       os.Getenv("SEALPOST_REDIS_ADDR"),
		OTLPEndpoint:    os.Getenv("SEALPOST_OTLP_ENDPOINT"),
		HandshakeSecret: os.Getenv("SEALPOST_HANDSHAKE_SECRET"),
		S3Bucket:        os.Getenv("SEALPOST_S3_BUCKET"),
		S3Region:        os.Getenv("SEALPOST_S3_REGION"),
		S3Endpoint:      os.Getenv("SEALPOST_S3_ENDPOINT"),
	}
}
