package app

import (
	"context"
	"journey_backend/internal/config"
	"journey_backend/internal/controller"
	"journey_backend/internal/repository"
	"journey_backend/internal/service"
	"journey_backend/pkg/configwatcher"
	"journey_backend/pkg/database"
	"journey_backend/pkg/logger"
	"journey_backend/pkg/monitoring"
	"journey_backend/pkg/security"
	"journey_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	ConfigDir string

	current         atomic.Pointer[config.Config]
	origins         *security.OriginAllowList
	services        *services
	tracer          *sdktrace.TracerProvider
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	assessment *repository.AssessmentRepository
	question   *repository.QuestionRepository
	document   *repository.DocumentRepository
	job        *repository.GenerationJobRepository
	approval   *repository.ApprovalRepository
}

type services struct {
	storage       *service.StorageService
	notification  *service.NotificationService
	assessment    *service.AssessmentService
	approval      *service.ApprovalService
	generation    *service.GenerationService
	questionnaire *service.QuestionnaireService
	document      *service.DocumentService
	journey       *service.JourneyService
}

type controllers struct {
	health        *controller.HealthController
	assessment    *controller.AssessmentController
	generation    *controller.GenerationController
	questionnaire *controller.QuestionnaireController
	document      *controller.DocumentController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// CurrentConfig 返回最近一次加载的配置
func (a *App) CurrentConfig() *config.Config {
	return a.current.Load()
}

// ApplyConfig 替换当前配置并执行回调，配置监听与测试共用
func (a *App) ApplyConfig(cfg *config.Config) {
	a.current.Store(cfg)
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		assessment: repository.NewAssessmentRepository(db),
		question:   repository.NewQuestionRepository(db),
		document:   repository.NewDocumentRepository(db),
		job:        repository.NewGenerationJobRepository(db),
		approval:   repository.NewApprovalRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.notification = service.NewNotificationService(&cfg.Mail)
	s.assessment = service.NewAssessmentService(repos.assessment, repos.job, repos.approval)
	s.approval = service.NewApprovalService(repos.assessment, repos.job, repos.approval, s.notification)
	s.generation = service.NewGenerationService(
		repos.assessment,
		repos.job,
		service.NewDispatcher(&cfg.Generation, rdb),
		s.approval,
		&cfg.Generation,
	)
	s.questionnaire = service.NewQuestionnaireService(repos.assessment, repos.question, repos.document, repos.job, repos.approval)
	s.document = service.NewDocumentService(repos.assessment, repos.document, repos.approval, s.storage, cfg.Upload.MaxBytes())
	s.journey = service.NewJourneyService(repos.assessment, repos.job, repos.approval)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		health:        controller.NewHealthController(db),
		assessment:    controller.NewAssessmentController(s.assessment),
		generation:    controller.NewGenerationController(s.generation, s.approval),
		questionnaire: controller.NewQuestionnaireController(s.questionnaire, s.journey),
		document:      controller.NewDocumentController(s.document),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(a.origins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// Build 在已有的数据库与 Redis 连接上组装路由，不做任何全局初始化
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		origins: security.NewOriginAllowList(cfg.CORS.AllowedOrigins),
	}
	app.current.Store(cfg)

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services, db)

	// 可热更新的配置项
	app.RegisterConfigCallback(func(c *config.Config) {
		app.origins.Set(c.CORS.AllowedOrigins)
		app.services.document.SetMaxUploadBytes(c.Upload.MaxBytes())
	})

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)
	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	var rdb *redis.Client
	if cfg.Generation.Dispatcher == "redis" {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
	}

	// 监控初始化
	monitoring.Init()

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer("journey-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app := Build(cfg, db, rdb)
	app.tracer = tp
	app.ConfigDir = "configs"
	return app
}

// Wait 等待派发、通知等后台任务结束
func (a *App) Wait() {
	if a.services == nil {
		return
	}
	a.services.generation.Wait()
	a.services.approval.Wait()
}

func (a *App) Run() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if a.ConfigDir != "" {
		if err := configwatcher.WatchConfig(ctx, a.ConfigDir, time.Second, a.ApplyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	a.Wait()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
