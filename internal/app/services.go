package app

import (
	"gorm.io/gorm"

	remote "github.com/masad-stock/skillbridge-sub000/internal/clients/remote"
	"github.com/masad-stock/skillbridge-sub000/internal/data/db"
	"github.com/masad-stock/skillbridge-sub000/internal/events"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	"github.com/masad-stock/skillbridge-sub000/internal/services"
)

type Services struct {
	SyncQueue    services.SyncQueueService
	Download     services.DownloadService
	Assessment   services.AssessmentService
	Certificate  services.CertificateService
	Storage      services.StorageService
	Connectivity *services.ConnectivityMonitor
}

func wireServices(theDB *gorm.DB, log *logger.Logger, cfg Config, sqlite *db.SQLiteService, reposet Repos, bus *events.Bus) Services {
	log.Info("Wiring services...")

	syncClient := remote.NewSyncClient(cfg.RemoteBaseURL, cfg.APIToken, cfg.HTTPTimeout, log)
	contentClient := remote.NewContentClient(cfg.RemoteBaseURL, cfg.APIToken, cfg.HTTPTimeout, log)

	syncQueue := services.NewSyncQueueService(
		theDB, log,
		services.SyncQueueConfig{
			BatchSize:      cfg.SyncBatchSize,
			MaxRetries:     cfg.SyncMaxRetries,
			InitialBackoff: cfg.SyncInitialBackoff,
			ItemTimeout:    cfg.SyncItemTimeout,
		},
		syncClient, bus,
		reposet.Queue, reposet.Progress, reposet.Assessment, reposet.Certificate, reposet.Business,
	)

	download := services.NewDownloadService(
		theDB, log,
		services.DownloadConfig{MaxConcurrent: cfg.MaxConcurrentDownloads},
		contentClient, reposet.Course, bus,
	)

	assessment := services.NewAssessmentService(theDB, log, reposet.Assessment, syncQueue)
	certificate := services.NewCertificateService(theDB, log, reposet.Certificate, syncQueue)
	storage := services.NewStorageService(
		sqlite, log, cfg.StorageQuotaBytes,
		reposet.Course, reposet.Progress, reposet.Assessment, reposet.Business, reposet.Certificate,
		syncQueue,
	)
	connectivity := services.NewConnectivityMonitor(log, syncQueue)

	return Services{
		SyncQueue:    syncQueue,
		Download:     download,
		Assessment:   assessment,
		Certificate:  certificate,
		Storage:      storage,
		Connectivity: connectivity,
	}
}
