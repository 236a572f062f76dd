package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"database_dsn":      "postgres://test",
		"storage_backend":   "s3",
		"storage_root":      "/srv/crate",
		"s3_root_user":      "user",
		"s3_root_password":  "password",
		"s3_bucket":         "bucket",
		"s3_region":         "region",
		"s3_base_endpoint":  "base_endpoint",
		"trash_retention":   "720h",
		"reaper_interval":   "30m",
		"reaper_batch_size": 250,
		"archive_max_bytes": 1024,
		"archive_max_files": 10,
		"metrics_addr":      ":9100",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "postgres://test", cfg.DatabaseDSN)
		assert.Equal(t, "s3", cfg.StorageBackend)
		assert.Equal(t, "/srv/crate", cfg.StorageRoot)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, 720*time.Hour, cfg.TrashRetention)
		assert.Equal(t, 30*time.Minute, cfg.ReaperInterval)
		assert.Equal(t, 250, cfg.ReaperBatchSize)
		assert.Equal(t, int64(1024), cfg.ArchiveMaxBytes)
		assert.Equal(t, int64(10), cfg.ArchiveMaxFiles)
		assert.Equal(t, ":9100", cfg.MetricsAddr)
	})

	t.Run("no config flag leaves values untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{DatabaseDSN: "keep-me", ReaperBatchSize: 42}
		parseJson(cfg)

		assert.Equal(t, "keep-me", cfg.DatabaseDSN)
		assert.Equal(t, 42, cfg.ReaperBatchSize)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", "/no/such/file.json"}

		assert.Panics(t, func() {
			parseJson(&Config{})
		})
	})
}
