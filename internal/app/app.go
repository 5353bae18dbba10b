package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/controller"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/configwatcher"
	"tutorhub_backend/pkg/database"
	"tutorhub_backend/pkg/llm"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"
	"tutorhub_backend/pkg/security"
	"tutorhub_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	// ConfigPath is watched for changes while the server runs.
	ConfigPath string

	current         atomic.Pointer[config.Config]
	services        *services
	rateLimiter     *security.IPRateLimiter
	tracerShutdown  func(context.Context) error
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	skill    *repository.SkillRepository
	mastery  *repository.MasteryRepository
	content  *repository.ContentRepository
	document *repository.DocumentRepository
}

type services struct {
	decaySettings *service.DecaySettings
	mastery       *service.MasteryService
	decay         *service.DecayService
	selector      *service.SkillSelector
	generator     *service.ContentGenerator
	skill         *service.SkillService
	content       *service.ContentService
	document      *service.DocumentService
}

type controllers struct {
	content  *controller.ContentController
	skill    *controller.SkillController
	mastery  *controller.MasteryController
	document *controller.DocumentController
	admin    *controller.AdminController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// currentConfig is the latest successfully loaded configuration.
func (a *App) currentConfig() *config.Config {
	return a.current.Load()
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		skill:    repository.NewSkillRepository(db),
		mastery:  repository.NewMasteryRepository(db),
		content:  repository.NewContentRepository(db),
		document: repository.NewDocumentRepository(db),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider: cfg.AI.Provider,
		ProviderConfig: llm.ProviderConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		},
		Retry: llm.RetryConfigFrom(cfg.AI.AttemptTimeout, cfg.AI.RetryWait),
	})
	if err != nil {
		return nil, err
	}

	var lock repository.RunLock = repository.LocalRunLock{}
	if rdb != nil {
		lock = repository.NewRedisRunLock(rdb)
	}

	s.decaySettings = service.NewDecaySettings(service.DecayPolicyFromConfig(cfg.Mastery.Decay))
	s.mastery = service.NewMasteryService(repos.mastery, repos.skill, s.decaySettings)
	s.decay = service.NewDecayService(repos.mastery, lock, s.decaySettings)
	s.selector = service.NewSkillSelector(s.mastery, repos.skill, cfg.Mastery.DefaultSkills)
	s.generator = service.NewContentGenerator(provider, cfg.Generation, cfg.AI.Timeout)
	s.skill = service.NewSkillService(repos.skill, s.generator)
	s.content = service.NewContentService(
		db,
		repos.content,
		repos.user,
		repos.skill,
		repos.document,
		s.mastery,
		s.selector,
		s.generator,
		cfg.Generation,
	)
	s.document = service.NewDocumentService(
		repos.document,
		service.NewStorageProvider(&cfg.Storage),
		service.NewPdfToTextExtractor(cfg.Upload.PdfToTextBinary, cfg.Upload.ExtractTimeout),
		cfg.Upload,
	)

	// Decay policy and the starter skills follow the config file.
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.decaySettings.Store(service.DecayPolicyFromConfig(newCfg.Mastery.Decay))
		s.selector.SetDefaultSkills(newCfg.Mastery.DefaultSkills)
	})

	return s, nil
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		content:  controller.NewContentController(s.content),
		skill:    controller.NewSkillController(s.skill),
		mastery:  controller.NewMasteryController(s.mastery, s.selector, repos.user),
		document: controller.NewDocumentController(s.document),
		admin:    controller.NewAdminController(s.decay),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	a.rateLimiter = security.NewIPRateLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.rateLimiter.Middleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp connects storage, builds the services and the router. With
// cfg.MigrateOnly it returns right after migrating.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{Config: cfg, DB: db, ConfigPath: filepath.Join("configs", "config.yaml")}
	app.current.Store(cfg)
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	if rdb == nil {
		logger.Log.Warn("Redis not configured, decay runs are coordinated in-process only")
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	svcs, err := app.initServices(context.Background(), repos, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = svcs
	ctrls := app.initControllers(svcs, repos, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(context.Background(), "tutorhub", cfg.Tracing.CollectorEndpoint, cfg.Tracing.Insecure)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerShutdown = tp.Shutdown
	}

	app.registerRoutes(router, ctrls)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// RunDecayOnce performs a single decay pass and returns.
func (a *App) RunDecayOnce(ctx context.Context) error {
	report, err := a.services.decay.RunOnce(ctx, time.Now())
	if err != nil {
		return err
	}
	logger.Log.Info("Decay pass complete",
		zap.Bool("skipped", report.Skipped),
		zap.Int64("decayed", report.Decayed),
		zap.Int64("failed", report.Failed))
	return nil
}

// startBackgroundTasks runs decay on its interval. The interval and the
// enabled flag are re-read from the live config before every wait.
func (a *App) startBackgroundTasks(ctx context.Context) {
	go a.rateLimiter.Cleanup(ctx)

	go func() {
		for {
			cfg := a.currentConfig().Mastery.Decay
			interval := cfg.Interval
			if interval <= 0 {
				interval = 24 * time.Hour
			}

			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if !a.currentConfig().Mastery.Decay.Enabled {
				continue
			}
			_, err := a.services.decay.RunOnce(ctx, time.Now())
			if err != nil && !errors.Is(err, service.ErrDecayRunning) && ctx.Err() == nil {
				logger.Log.Error("Scheduled decay run failed", zap.Error(err))
			}
		}
	}()

	go func() {
		err := configwatcher.WatchConfig(ctx, a.ConfigPath, func(newCfg *config.Config) {
			a.current.Store(newCfg)
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	a.startBackgroundTasks(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// stop the decay ticker and the watcher before draining requests
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
	logger.Sync()
}
