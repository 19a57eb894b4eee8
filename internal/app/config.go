package app

import (
	"time"

	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	"github.com/masad-stock/skillbridge-sub000/internal/utils"
)

type Config struct {
	DBPath            string
	StorageQuotaBytes int64

	RemoteBaseURL string
	APIToken      string
	HTTPTimeout   time.Duration

	SyncBatchSize      int
	SyncMaxRetries     int
	SyncInitialBackoff time.Duration
	SyncItemTimeout    time.Duration

	MaxConcurrentDownloads int
}

func LoadConfig(log *logger.Logger) Config {
	httpTimeoutSeconds := utils.GetEnvAsInt("HTTP_TIMEOUT_SECONDS", 30, log)
	initialBackoffMillis := utils.GetEnvAsInt("SYNC_INITIAL_BACKOFF_MS", 1000, log)
	itemTimeoutSeconds := utils.GetEnvAsInt("SYNC_ITEM_TIMEOUT_SECONDS", 30, log)
	return Config{
		DBPath:            utils.GetEnv("OFFLINE_DB_PATH", "skillbridge-offline.db", log),
		StorageQuotaBytes: utils.GetEnvAsInt64("STORAGE_QUOTA_BYTES", 500*1024*1024, log),

		RemoteBaseURL: utils.GetEnv("REMOTE_BASE_URL", "https://api.skillbridge.app", log),
		APIToken:      utils.GetEnv("API_TOKEN", "", log),
		HTTPTimeout:   time.Duration(httpTimeoutSeconds) * time.Second,

		SyncBatchSize:      utils.GetEnvAsInt("SYNC_BATCH_SIZE", 10, log),
		SyncMaxRetries:     utils.GetEnvAsInt("SYNC_MAX_RETRIES", 5, log),
		SyncInitialBackoff: time.Duration(initialBackoffMillis) * time.Millisecond,
		SyncItemTimeout:    time.Duration(itemTimeoutSeconds) * time.Second,

		MaxConcurrentDownloads: utils.GetEnvAsInt("MAX_CONCURRENT_DOWNLOADS", 2, log),
	}
}
