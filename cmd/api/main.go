package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flashshare/internal/config"
	"flashshare/internal/database"
	"flashshare/internal/domain/admin"
	"flashshare/internal/domain/ipacl"
	"flashshare/internal/domain/settings"
	"flashshare/internal/domain/share"
	"flashshare/internal/middleware"
	jwtsvc "flashshare/internal/pkg/jwt"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
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
	if err := db.AutoMigrate(&share.FileRecord{}, &settings.Setting{}, &ipacl.AccessRule{}); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	blobs, err := share.NewBlobStore(afero.NewOsFs(), cfg.UploadDir)
	if err != nil {
		logger.Fatal("open blob store", zap.Error(err))
	}

	settingsSvc := settings.NewService(settings.NewRepository(db), logger)
	if err := settingsSvc.EnsureDefaults(context.Background()); err != nil {
		logger.Fatal("seed settings", zap.Error(err))
	}

	shareRepo := share.NewRepository(db)
	shareSvc := share.NewService(shareRepo, blobs, settingsSvc, logger)
	reclaimer := share.NewReclaimer(shareRepo, blobs, logger, cfg.SweepInterval)

	ipaclSvc := ipacl.NewService(ipacl.NewRepository(db), settingsSvc, logger)

	j := jwtsvc.New(cfg.JWTSecret, cfg.SessionTTL)
	adminSvc := admin.NewService(settingsSvc, shareRepo, blobs, reclaimer, j, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// No request is admitted before the stores agree with each other.
	if err := reclaimer.StartupSweep(ctx); err != nil {
		logger.Fatal("startup sweep", zap.Error(err))
	}

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(logger))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := r.Group("/")
	guarded.Use(ipacl.Middleware(ipaclSvc))
	{
		share.RegisterRoutes(guarded, share.NewHandler(shareSvc))
		admin.RegisterRoutes(guarded, admin.NewHandler(adminSvc, ipaclSvc), j)
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reclaimer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
