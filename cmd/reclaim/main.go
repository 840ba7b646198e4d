package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"flashshare/internal/config"
	"flashshare/internal/database"
	"flashshare/internal/domain/share"
)

// One-shot reconciliation sweep for operators: removes ended shares,
// orphaned blobs and dangling records, then exits.
func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	if err := db.AutoMigrate(&share.FileRecord{}); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	blobs, err := share.NewBlobStore(afero.NewOsFs(), cfg.UploadDir)
	if err != nil {
		logger.Fatal("open blob store", zap.Error(err))
	}

	reclaimer := share.NewReclaimer(share.NewRepository(db), blobs, logger, cfg.SweepInterval)
	if err := reclaimer.StartupSweep(context.Background()); err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	logger.Info("reclamation completed")
}
