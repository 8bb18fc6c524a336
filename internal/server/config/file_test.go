package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"cmd"}, args...)
}

func TestParseFile_JSON(t *testing.T) {
	path := writeConfigFile(t, "server.json", `{
		"endpoint_addr_http": ":9999",
		"secret_key": "from-json",
		"token_validity_duration": "2h",
		"max_upload_size": 1024
	}`)
	withArgs(t, "-c", path)

	c := &Config{}
	c.LoadDefaults()
	parseFile(c)

	assert.Equal(t, ":9999", c.EndpointAddrHTTP)
	assert.Equal(t, "from-json", c.SecretKey)
	assert.Equal(t, 2*time.Hour, c.TokenValidityDuration)
	assert.Equal(t, int64(1024), c.MaxUploadSize)
	// untouched keys keep their defaults
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "uploads", c.UploadDir)
}

func TestParseFile_YAML(t *testing.T) {
	path := writeConfigFile(t, "server.yaml", `
database_dsn: postgres://u:p@db:5432/shop
token_validity_duration: 30m
bcrypt_cost: 12
admin_password: s3cret
log_format: zap
s3_bucket: images
`)
	withArgs(t, "-config", path)

	c := &Config{}
	c.LoadDefaults()
	parseFile(c)

	assert.Equal(t, "postgres://u:p@db:5432/shop", c.DatabaseDSN)
	assert.Equal(t, 30*time.Minute, c.TokenValidityDuration)
	assert.Equal(t, 12, c.BcryptCost)
	assert.Equal(t, "s3cret", c.AdminPassword)
	assert.Equal(t, "zap", c.LogFormat)
	assert.Equal(t, "images", c.S3Bucket)
	assert.Equal(t, "admin", c.AdminUsername)
}

func TestParseFile_NoFlag(t *testing.T) {
	withArgs(t)

	c := &Config{}
	c.LoadDefaults()
	want := *c
	parseFile(c)

	assert.Equal(t, want, *c)
}

func TestParseFile_Panics(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		withArgs(t, "-c", filepath.Join(t.TempDir(), "absent.json"))
		assert.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("malformed json", func(t *testing.T) {
		withArgs(t, "-c", writeConfigFile(t, "bad.json", `{"secret_key":`))
		assert.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("malformed duration in yaml", func(t *testing.T) {
		withArgs(t, "-c", writeConfigFile(t, "bad.yml", "token_validity_duration: soon\n"))
		assert.Panics(t, func() { parseFile(&Config{}) })
	})
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, "server.yaml", "secret_key: from-file\nupload_dir: /data/file\n")
	withArgs(t, "-c", path, "-s", "from-flag")

	c := LoadConfig()

	assert.Equal(t, "from-flag", c.SecretKey)
	assert.Equal(t, "/data/file", c.UploadDir)
}
