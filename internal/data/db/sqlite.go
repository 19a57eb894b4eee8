package db

import (
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	"github.com/masad-stock/skillbridge-sub000/internal/utils"
)

// SQLiteService owns the device-local store. A failed open is fatal to every
// dependent operation and is surfaced as a distinct wrapped error, never as
// a not-found.
type SQLiteService struct {
	db     *gorm.DB
	log    *logger.Logger
	path   string
	closed bool
}

func NewSQLiteService(logg *logger.Logger) (*SQLiteService, error) {
	path := utils.GetEnv("OFFLINE_DB_PATH", "skillbridge-offline.db", logg)
	return OpenSQLite(path, logg)
}

func OpenSQLite(path string, logg *logger.Logger) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store %q: %w", path, err)
	}

	// WAL keeps writers from blocking the read paths the UI polls.
	if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL on offline store: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy timeout on offline store: %w", err)
	}

	serviceLog.Info("Offline store opened", "path", path)
	return &SQLiteService{db: db, log: serviceLog, path: path}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) Path() string { return s.path }

// SizeBytes reports the store file size on disk. Best effort: failures
// return zero rather than an error, per the usage-report contract.
func (s *SQLiteService) SizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *SQLiteService) Close() error {
	if s.closed {
		return pkgerrors.ErrStoreClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access underlying sqlite handle: %w", err)
	}
	s.log.Info("Closing offline store", "path", s.path)
	s.closed = true
	return sqlDB.Close()
}
