package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/masad-stock/skillbridge-sub000/internal/data/db"
	"github.com/masad-stock/skillbridge-sub000/internal/events"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

// App owns the offline engine's lifecycle: the local store, the event bus,
// and the service set. No package-level singletons; everything hangs off
// this struct.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Bus      *events.Bus

	sqlite *db.SQLiteService
	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	sqlite, err := db.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	if err := sqlite.AutoMigrateAll(); err != nil {
		sqlite.Close()
		log.Sync()
		return nil, fmt.Errorf("sqlite automigrate: %w", err)
	}
	theDB := sqlite.DB()

	bus := events.NewBus(log)
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, sqlite, reposet, bus)

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Bus:      bus,
		sqlite:   sqlite,
	}, nil
}

// Start marks the engine online and kicks the initial drain of anything
// queued while the process was down.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Services.Connectivity.SetOnline(ctx, true)
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Services.Connectivity.Wait()
	err := a.sqlite.Close()
	a.Log.Sync()
	return err
}
