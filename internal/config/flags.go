package config

import (
	"flag"
	"os"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-k string   storage backend ("disk" or "s3")
//	-f string   base directory for the disk backend
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t int      trash retention, hours
//	-i int      reaper interval, minutes
//	-n int      reaper batch size
//	-z int      archive size ceiling, bytes
//	-x int      archive file-count ceiling
//	-m string   Prometheus metrics bind address
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers (hours or minutes) and then
//     converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-k", "-f", "-u", "-p", "-b", "-g", "-e", "-t", "-i", "-n", "-z", "-x", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (disk or s3)")
	fs.StringVar(&config.StorageRoot, "f", config.StorageRoot, "disk backend base directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	trashRetention := fs.Int("t", int(config.TrashRetention.Hours()), "trash retention (in hours)")
	reaperInterval := fs.Int("i", int(config.ReaperInterval.Minutes()), "reaper interval (in minutes)")

	fs.IntVar(&config.ReaperBatchSize, "n", config.ReaperBatchSize, "reaper batch size")
	fs.Int64Var(&config.ArchiveMaxBytes, "z", config.ArchiveMaxBytes, "archive size ceiling (bytes)")
	fs.Int64Var(&config.ArchiveMaxFiles, "x", config.ArchiveMaxFiles, "archive file-count ceiling")

	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics bind address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TrashRetention = time.Duration(*trashRetention) * time.Hour
	config.ReaperInterval = time.Duration(*reaperInterval) * time.Minute
}
