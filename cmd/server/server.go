package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/handlers"
	"github.com/kxrica/go-skyvault/internal/middlewares"
	"github.com/kxrica/go-skyvault/internal/pkg/cache"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/mq/worker"
	"github.com/kxrica/go-skyvault/internal/pkg/search"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/router"
	"github.com/kxrica/go-skyvault/internal/services/access"
	"github.com/kxrica/go-skyvault/internal/services/admin"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	"github.com/kxrica/go-skyvault/internal/services/share"
	"github.com/kxrica/go-skyvault/internal/setup"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	rabbitMQClient *mq.RabbitMQClient
	rateLimiters   []*middlewares.RateLimiter
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化基础设施连接
	setup.InitMySQL(&cfg.MySQL)
	setup.InitRedis(cfg)
	setup.InitElasticsearchClient(&cfg.Elasticsearch)
	storageService := setup.InitStorage(cfg)

	//初始化rabbitmq
	rabbitMQClient, err := mq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}

	//  初始化 Repositories
	redisCache := cache.NewRedisCache(setup.RedisClientGlobal)
	fileRepo := repositories.NewFileRepository(setup.DB, redisCache)
	folderRepo := repositories.NewFolderRepository(setup.DB, redisCache)
	userRepo := repositories.NewUserRepository(setup.DB)
	shareRepo := repositories.NewShareRepository(setup.DB)
	linkRepo := repositories.NewLinkShareRepository(setup.DB)
	tm := repositories.NewTransactionManager(setup.DB)

	//初始化其他服务
	indexer := search.NewFileIndexer(setup.EsClient, &cfg.Elasticsearch)
	mailer := utils.NewEmailSender(&cfg.SMTP)
	resolver := access.NewResolver(fileRepo, folderRepo, shareRepo)

	//  初始化 Services
	authService := admin.NewAuthService(userRepo, cfg)
	userService := admin.NewUserService(userRepo)
	folderService := explorer.NewFolderService(folderRepo, fileRepo, shareRepo, resolver, tm, indexer)
	fileService := explorer.NewFileService(fileRepo, folderRepo, resolver, storageService, indexer, cfg)
	uploadService := explorer.NewUploadService(fileRepo, folderRepo, resolver, storageService, rabbitMQClient, indexer, cfg)
	shareService := share.NewShareService(shareRepo, linkRepo, fileRepo, folderRepo, userRepo, resolver, mailer, cfg)

	//  初始化 Handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	folderHandler := handlers.NewFolderHandler(folderService)
	fileHandler := handlers.NewFileHandler(fileService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	shareHandler := handlers.NewShareHandler(shareService, fileService)

	// 启动所有后台 Worker
	worker.StartAllWorkers(cfg, rabbitMQClient, fileRepo, storageService)

	// 初始化 Gin 引擎和注册路由
	publicLimiter := middlewares.NewRateLimiter(10, 20)
	authLimiter := middlewares.NewRateLimiter(5, 10)
	engine := router.InitRouter(authHandler, folderHandler, fileHandler, uploadHandler, shareHandler, publicLimiter, authLimiter, cfg)

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		router:         engine,
		httpServer:     httpServer,
		rabbitMQClient: rabbitMQClient,
		rateLimiters:   []*middlewares.RateLimiter{publicLimiter, authLimiter},
	}, nil
}

// Run 启动服务器，并处理优雅关机
func (s *Server) Run(stopChan chan os.Signal) {
	// 确保在应用关闭时，所有连接都被释放
	defer s.rabbitMQClient.Close()
	defer setup.CloseRedis()
	defer setup.CloseMySQLDB()
	for _, limiter := range s.rateLimiters {
		defer limiter.Stop()
	}

	// 启动 HTTP 服务器
	go func() {
		logger.Info("Server is running on " + s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
