package app

import (
	"fmt"

	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/pkg/database"
	"dropout_risk_backend/pkg/logger"
	"dropout_risk_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// OpenServices is the batch counterpart of NewApp: it loads the config,
// opens the stores and returns the services with a close func. The active
// model is not loaded.
func OpenServices(configDir string, migrate bool) (*config.Config, *Services, func(), error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.InitLogger(cfg)
	monitoring.Init()

	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, benchmark cache disabled", zap.Error(err))
		rdb = nil
	}
	store, err := artifact.NewStore(&cfg.Storage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open model storage: %w", err)
	}

	closeFn := func() {
		if rdb != nil {
			rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		logger.Log.Sync()
	}
	return cfg, NewServices(cfg, db, rdb, store), closeFn, nil
}
