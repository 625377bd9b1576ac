package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variables understood by streamcast. Unset values fall back to
// the defaults below.
const (
	envDataDir        = "STREAMCAST_DATA_DIR"
	envWorkRoot       = "STREAMCAST_WORK_DIR"
	envServeDir       = "STREAMCAST_SERVE_DIR"
	envListenAddr     = "STREAMCAST_LISTEN_ADDR"
	envLogLevel       = "STREAMCAST_LOG_LEVEL"
	envLogFile        = "STREAMCAST_LOG_FILE"
	envBackend        = "STREAMCAST_STORAGE_BACKEND"
	envStorageKey     = "STREAMCAST_STORAGE_KEY"
	envBucket         = "STREAMCAST_BUCKET"
	envRegion         = "STREAMCAST_REGION"
	envDeliveryDomain = "STREAMCAST_DELIVERY_DOMAIN"
	envRedisAddr      = "STREAMCAST_REDIS_ADDR"
	envRedisPassword  = "STREAMCAST_REDIS_PASSWORD"
	envRedisDB        = "STREAMCAST_REDIS_DB"
	envPostgresURL    = "STREAMCAST_POSTGRES_URL"
	envJWTSecret      = "STREAMCAST_JWT_SECRET"
	envWorkers        = "STREAMCAST_WORKERS"
	envUploadWorkers  = "STREAMCAST_UPLOAD_CONCURRENCY"
	envJobTimeout     = "STREAMCAST_JOB_TIMEOUT"
	envEncodeTimeout  = "STREAMCAST_ENCODE_TIMEOUT"
	envUploadTimeout  = "STREAMCAST_UPLOAD_TIMEOUT"
	envOrphanDeadline = "STREAMCAST_ORPHAN_DEADLINE"
	envQueueSize      = "STREAMCAST_QUEUE_SIZE"
	envWebhookURL     = "STREAMCAST_WEBHOOK_URL"
	envAdminToken     = "STREAMCAST_ADMIN_TOKEN"
	envStrayDir       = "STREAMCAST_STRAY_DIR"
)

const (
	defaultListenAddr     = ":8080"
	defaultBackend        = "s3"
	defaultRegion         = "us-east-1"
	defaultWorkers        = 2
	defaultQueueSize      = 64
	defaultUploadWorkers  = 16
	defaultJobTimeout     = 2 * time.Hour
	defaultEncodeTimeout  = 45 * time.Minute
	defaultUploadTimeout  = 2 * time.Minute
	defaultOrphanDeadline = 3 * time.Hour
)

// GetDataDir returns the directory holding the Pebble databases.
// Priority: STREAMCAST_DATA_DIR > "./data".
func GetDataDir() string {
	return envOrDefault(envDataDir, "./data")
}

// GetWorkRoot returns the root under which job-scoped work directories are
// created.
func GetWorkRoot() string {
	return envOrDefault(envWorkRoot, filepath.Join(os.TempDir(), "streamcast"))
}

// GetStrayDir returns an extra directory scanned for DASH segments that
// ffmpeg wrote outside the job's work dir. Empty disables the scan.
func GetStrayDir() string { return os.Getenv(envStrayDir) }

// GetCredentialsDBPath returns {DATA_DIR}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetJobsDBPath returns {DATA_DIR}/jobs.db, the job record store.
func GetJobsDBPath() string {
	return filepath.Join(GetDataDir(), "jobs.db")
}

// GetLedgerDBPath returns {DATA_DIR}/ledger.db, the in-flight job ledger.
func GetLedgerDBPath() string {
	return filepath.Join(GetDataDir(), "ledger.db")
}

// GetDirectServeBaseDir returns the base directory used by the directServe
// backend. Not configurable by job submitters.
func GetDirectServeBaseDir() string {
	return envOrDefault(envServeDir, "./serve")
}

func GetListenAddr() string { return envOrDefault(envListenAddr, defaultListenAddr) }
func GetLogLevel() string { return envOrDefault(envLogLevel, "info") }
func GetLogFile() string { return os.Getenv(envLogFile) }

// GetStorageBackend returns the writer backend name (s3, gcs, sftp, directServe).
func GetStorageBackend() string { return envOrDefault(envBackend, defaultBackend) }

// GetStorageKey returns the credentials-store key holding backend credentials.
// Empty means credentials come from the environment.
func GetStorageKey() string { return os.Getenv(envStorageKey) }

func GetBucket() string { return os.Getenv(envBucket) }
func GetRegion() string { return envOrDefault(envRegion, defaultRegion) }

// GetDeliveryDomain returns the public CDN host published URLs are built on.
func GetDeliveryDomain() string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(os.Getenv(envDeliveryDomain), "https://"), "http://"), "/")
}

func GetRedisAddr() string { return os.Getenv(envRedisAddr) }
func GetRedisPassword() string { return os.Getenv(envRedisPassword) }
func GetRedisDB() int { return envInt(envRedisDB, 0) }
func GetPostgresURL() string { return os.Getenv(envPostgresURL) }
func GetJWTSecret() string { return os.Getenv(envJWTSecret) }

// GetAdminToken guards credentials registration. Empty disables the route.
func GetAdminToken() string { return os.Getenv(envAdminToken) }

func GetWorkers() int { return envInt(envWorkers, defaultWorkers) }
func GetQueueSize() int { return envInt(envQueueSize, defaultQueueSize) }
func GetWebhookURL() string { return os.Getenv(envWebhookURL) }
func GetUploadConcurrency() int { return envInt(envUploadWorkers, defaultUploadWorkers) }
func GetJobTimeout() time.Duration { return envDuration(envJobTimeout, defaultJobTimeout) }
func GetEncodeTimeout() time.Duration {
	return envDuration(envEncodeTimeout, defaultEncodeTimeout)
}
func GetUploadTimeout() time.Duration {
	return envDuration(envUploadTimeout, defaultUploadTimeout)
}

// GetOrphanDeadline is how long a job may stay in processing before the
// supervisor declares it orphaned.
func GetOrphanDeadline() time.Duration {
	return envDuration(envOrphanDeadline, defaultOrphanDeadline)
}

// StorageCredentialsFromEnv collects backend credentials from the
// environment in the same key shape the credentials store uses.
func StorageCredentialsFromEnv() map[string]string {
	creds := map[string]string{
		"bucket":          GetBucket(),
		"region":          GetRegion(),
		"accessKey":       os.Getenv("AWS_ACCESS_KEY_ID"),
		"secretKey":       os.Getenv("AWS_SECRET_ACCESS_KEY"),
		"endpoint":        os.Getenv("STREAMCAST_S3_ENDPOINT"),
		"credentialsJSON": os.Getenv("STREAMCAST_GCS_CREDENTIALS"),
		"host":            os.Getenv("STREAMCAST_SFTP_HOST"),
		"port":            os.Getenv("STREAMCAST_SFTP_PORT"),
		"user":            os.Getenv("STREAMCAST_SFTP_USER"),
		"password":        os.Getenv("STREAMCAST_SFTP_PASSWORD"),
		"privateKey":      os.Getenv("STREAMCAST_SFTP_PRIVATE_KEY"),
		"remoteRoot":      os.Getenv("STREAMCAST_SFTP_ROOT"),
		"baseDir":         GetDirectServeBaseDir(),
	}
	for k, v := range creds {
		if v == "" {
			delete(creds, k)
		}
	}
	return creds
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
