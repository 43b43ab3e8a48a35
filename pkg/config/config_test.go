package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfig(t, `
[service]
base_url = "https://transfer.example.org/v1"
token = "secret"
`)

	config, err := LoadFromFile(path)
	assert.NoError(t, err)

	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, 60, config.Transfer.IntervalSeconds)
	assert.Equal(t, 24*60*60, config.Transfer.InactivityTimeoutSeconds)
	assert.Equal(t, 10, config.Transfer.Retries)
	assert.True(t, config.Transfer.VerifyChecksum)
	assert.Equal(t, "info", config.Daemon.LogLevel)
	assert.False(t, config.Archive.Enabled)
	assert.False(t, config.Notify.Enabled)
}

func TestLoadFromFileMissingServiceURL(t *testing.T) {
	path := writeConfig(t, `
[daemon]
log_level = "debug"
`)

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "config validation failed")
}

func TestLoadFromFileArchiveRequiresS3(t *testing.T) {
	path := writeConfig(t, `
[service]
base_url = "https://transfer.example.org/v1"

[archive]
enabled = true
`)

	// The s3 struct is materialized from defaults, so the missing
	// credentials surface through the required tags.
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "config validation failed")
	assert.ErrorContains(t, err, "Endpoint")
}

func TestLoadFromFileArchiveWithS3(t *testing.T) {
	path := writeConfig(t, `
[service]
base_url = "https://transfer.example.org/v1"

[archive]
enabled = true

[archive.s3]
endpoint = "https://s3.example.org"
bucket = "gridsync"
access_key = "key"
secret_key = "secret"
`)

	config, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "us-east-1", config.Archive.S3.Region)
	assert.Equal(t, 3, config.Archive.S3.MaxRetries)
	assert.Equal(t, 10, config.Archive.S3.MaxConcurrentUploads)
}

func TestLoadFromFileNotifyRequiresWebhook(t *testing.T) {
	path := writeConfig(t, `
[service]
base_url = "https://transfer.example.org/v1"

[notify]
enabled = true
`)

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "webhook_url is required")
}
