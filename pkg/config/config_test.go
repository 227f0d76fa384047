package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEALPOST_LOG_LEVEL", "")
	t.Setenv("SEALPOST_DB_PATH", "")
	cfg := Load()
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "sealpost.db", cfg.DatabasePath)
	assert.Equal(t, "http://localhost:9120", cfg.ParserURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SEALPOST_LOG_LEVEL", "DEBUG")
	t.Setenv("SEALPOST_REDIS_ADDR", "localhost:6379")
	cfg := Load()
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func writeProfile(t *testing.T, dir, method, content string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+method+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "mail", `
name: company mail bridge
method: mail
endpoint: https://mail-bridge.internal/send
rate_per_minute: 30
defaults:
  from: noreply@example.com
`)

	profile, err := LoadProfile(dir, "mail")
	require.NoError(t, err)
	assert.Equal(t, "company mail bridge", profile.Name)
	assert.Equal(t, "mail", profile.Method)
	assert.Equal(t, 30, profile.RatePerMinute)
	assert.Equal(t, "noreply@example.com", profile.Defaults["from"])
}

func TestLoadProfileRejectsUnknownMethod(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "fax", "name: fax\nmethod: fax\n")

	_, err := LoadProfile(dir, "fax")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown delivery method")
}

func TestLoadProfileMissing(t *testing.T) {
	_, err := LoadProfile(t.TempDir(), "mail")
	assert.Error(t, err)
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "mail", "method: mail\n")
	writeProfile(t, dir, "chat", "method: chat\n")

	profiles, err := LoadAllProfiles(dir)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, "mail")
	assert.Contains(t, profiles, "chat")
}
