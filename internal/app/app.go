package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/internal/controller"
	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/repository"
	"dropout_risk_backend/internal/service"
	"dropout_risk_backend/pkg/configwatcher"
	"dropout_risk_backend/pkg/database"
	"dropout_risk_backend/pkg/logger"
	"dropout_risk_backend/pkg/monitoring"
	"dropout_risk_backend/pkg/security"
	"dropout_risk_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Store           artifact.Store
	Services        *Services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	feature    *repository.StudentFeatureRepository
	prediction *repository.PredictionRepository
	benchmark  *repository.BenchmarkRepository
	registry   *repository.ModelRegistryRepository
}

// Services is the pipeline layer shared by the HTTP server and the batch
// scripts.
type Services struct {
	Auth       *service.AuthService
	Benchmark  *service.BenchmarkService
	Prediction *service.PredictionService
	Training   *service.TrainingService
}

type controllers struct {
	auth       *controller.AuthController
	prediction *controller.PredictionController
	benchmark  *controller.BenchmarkController
	model      *controller.ModelController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		feature:    repository.NewStudentFeatureRepository(db),
		prediction: repository.NewPredictionRepository(db),
		benchmark:  repository.NewBenchmarkRepository(db),
		registry:   repository.NewModelRegistryRepository(db),
	}
}

func initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, store artifact.Store) *Services {
	prediction := service.NewPredictionService(repos.feature, repos.prediction)
	benchmarks := service.NewBenchmarkService(repos.feature, repos.benchmark, rdb,
		cfg.Redis.BenchmarkTTL, service.CohortMode(cfg.Model.Cohort))
	training := service.NewTrainingService(repos.feature, repos.registry, store, prediction, cfg.Model)
	training.Benchmarks = benchmarks
	return &Services{
		Auth:       service.NewAuthService(repos.user, cfg),
		Benchmark:  benchmarks,
		Prediction: prediction,
		Training:   training,
	}
}

// NewServices wires the pipeline services without an HTTP server. rdb may
// be nil.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store artifact.Store) *Services {
	return initServices(initRepositories(db), cfg, rdb, store)
}

func initControllers(s *Services, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.Auth),
		prediction: controller.NewPredictionController(s.Prediction),
		benchmark:  controller.NewBenchmarkController(s.Benchmark),
		model:      controller.NewModelController(s.Training),
		health:     controller.NewHealthController(db, s.Prediction),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New assembles the server on already opened stores. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store artifact.Store) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Store:  store,
	}

	repos := initRepositories(db)
	app.Services = initServices(repos, cfg, rdb, store)
	controllers := initControllers(app.Services, db)

	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		if err := app.Services.Training.Reconfigure(context.Background(), newCfg.Model); err != nil {
			logger.Log.Error("切换预测模型失败", zap.Error(err))
		}
	})
	return app
}

// NewApp opens every backend named in cfg and loads the active model.
func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	// 缓存不可用时基准直接读数据库
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, benchmark cache disabled", zap.Error(err))
		rdb = nil
	}

	store, err := artifact.NewStore(&cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to initialize model storage", zap.Error(err))
	}

	app := New(cfg, db, rdb, store)
	app.ConfigDir = configDir

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	// 没有可用模型时服务照常启动，预测接口返回 503
	if err := app.Services.Training.LoadActive(context.Background()); err != nil {
		if ml.IsModelLoadError(err) {
			logger.Log.Warn("未加载预测模型，请先训练", zap.Error(err))
		} else {
			logger.Log.Error("加载预测模型失败", zap.Error(err))
		}
	}

	return app
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if a.ConfigDir != "" {
		go func() {
			path := filepath.Join(a.ConfigDir, "config.yaml")
			if err := configwatcher.WatchConfig(watchCtx, path, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
