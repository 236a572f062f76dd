package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/flagx"
	"github.com/cloudcrate/cloudcrate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "720h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN     string         `json:"database_dsn"`
	StorageBackend  string         `json:"storage_backend"`
	StorageRoot     string         `json:"storage_root"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	TrashRetention  timex.Duration `json:"trash_retention"`
	ReaperInterval  timex.Duration `json:"reaper_interval"`
	ReaperBatchSize int            `json:"reaper_batch_size"`
	ArchiveMaxBytes int64          `json:"archive_max_bytes"`
	ArchiveMaxFiles int64          `json:"archive_max_files"`
	MetricsAddr     string         `json:"metrics_addr"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.StorageBackend = c.StorageBackend
	config.StorageRoot = c.StorageRoot
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.TrashRetention = time.Duration(c.TrashRetention.Duration)
	config.ReaperInterval = time.Duration(c.ReaperInterval.Duration)
	config.ReaperBatchSize = c.ReaperBatchSize
	config.ArchiveMaxBytes = c.ArchiveMaxBytes
	config.ArchiveMaxFiles = c.ArchiveMaxFiles
	config.MetricsAddr = c.MetricsAddr
}
