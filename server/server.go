package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"springlink/cache"
	"springlink/config"
	"springlink/core/auth"
	"springlink/core/manager"
	"springlink/core/node"
	"springlink/db"
	"springlink/logger"
	"springlink/repository"

	"github.com/gorilla/mux"
)

// Start 初始化并启动控制网关
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	auth.Init(cfg.JWTSecret)

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.GatewayAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Connect to Redis
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("Redis 连接失败", logger.ErrorField(err))
	}
	defer cache.CloseRedis()
	logger.Info("Successfully connected to Redis")

	// MySQL 播放历史可选
	var history repository.HistoryRepository
	if cfg.DBHost != "" {
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("MySQL 连接失败", logger.ErrorField(err))
		}
		defer db.CloseGormDB()

		repo, err := repository.NewGormHistoryRepository(db.GormDB)
		if err != nil {
			logger.Fatal("播放历史表初始化失败", logger.ErrorField(err))
		}
		history = repo
	} else {
		logger.Info("DB_HOST 未配置，播放历史已禁用")
	}

	entries, err := config.LoadNodes(cfg.NodesFile)
	if err != nil {
		logger.Fatal("节点配置加载失败",
			logger.String("file", cfg.NodesFile),
			logger.ErrorField(err))
	}
	if len(entries) == 0 {
		logger.Fatal("节点配置为空", logger.String("file", cfg.NodesFile))
	}

	bridge := NewIntentBridge()

	mgr := manager.New(manager.Options{
		UserID:         cfg.UserID,
		Shards:         cfg.Shards,
		SendWS:         bridge.Send,
		SearchPrefix:   cfg.SearchPrefix,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		QueueStore:     cache.NewQueueCache(),
		ResolveCache:   cache.NewResolveCache(0),
		History:        history,
	}, nodeConfigs(entries))
	defer mgr.Shutdown()

	bridge.SetPacketHandler(mgr.HandleGatewayPacket)

	// 节点配置热加载：新增的节点即时注册，已注册的忽略
	watcher, err := config.WatchNodes(cfg.NodesFile, func(updated []config.NodeEntry) {
		for _, nc := range nodeConfigs(updated) {
			mgr.Registry().Register(nc)
		}
	})
	if err != nil {
		logger.Warn("节点配置热加载不可用", logger.ErrorField(err))
	} else {
		defer watcher.Close()
	}

	hub := NewEventHub(mgr.Events())
	apiHandler := NewAPIHandler(mgr, history)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 曲目解析相关的API端点
	router.HandleFunc("/api/resolve", apiHandler.AuthMiddleware(apiHandler.ResolveHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/decode", apiHandler.AuthMiddleware(apiHandler.DecodeHandler)).Methods(http.MethodGet)

	// 会话相关的API端点
	router.HandleFunc("/api/players", apiHandler.AuthMiddleware(apiHandler.CreatePlayerHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}", apiHandler.AuthMiddleware(apiHandler.GetPlayerHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/players/{guild_id}", apiHandler.AuthMiddleware(apiHandler.DestroyHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/players/{guild_id}/queue", apiHandler.AuthMiddleware(apiHandler.EnqueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/play", apiHandler.AuthMiddleware(apiHandler.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/pause", apiHandler.AuthMiddleware(apiHandler.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/stop", apiHandler.AuthMiddleware(apiHandler.StopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/seek", apiHandler.AuthMiddleware(apiHandler.SeekHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/volume", apiHandler.AuthMiddleware(apiHandler.VolumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/loop", apiHandler.AuthMiddleware(apiHandler.LoopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/equalizer", apiHandler.AuthMiddleware(apiHandler.EqualizerHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/filters/{filter}", apiHandler.AuthMiddleware(apiHandler.FiltersHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/players/{guild_id}/history", apiHandler.AuthMiddleware(apiHandler.HistoryHandler)).Methods(http.MethodGet)

	// 节点与网关包
	router.HandleFunc("/api/nodes", apiHandler.AuthMiddleware(apiHandler.NodesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/gateway", apiHandler.AuthMiddleware(apiHandler.GatewayPacketHandler)).Methods(http.MethodPost)

	// WebSocket 端点
	router.HandleFunc("/ws/events", hub.HandleEvents)
	router.HandleFunc("/ws/intents", bridge.HandleIntents)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("控制网关已启动",
			logger.String("addr", cfg.GatewayAddr),
			logger.Int("nodes", len(entries)),
			logger.Bool("auth", auth.Enabled()))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

// nodeConfigs 把静态配置项转成注册表配置
func nodeConfigs(entries []config.NodeEntry) []node.Config {
	out := make([]node.Config, 0, len(entries))
	for _, e := range entries {
		out = append(out, node.Config{
			Identifier:     e.Identifier,
			Host:           e.Host,
			Port:           e.Port,
			Password:       e.Password,
			Secure:         e.Secure,
			ResumeKey:      e.ResumeKey,
			ResumeTimeout:  e.ResumeTimeout,
			ReconnectDelay: time.Duration(e.ReconnectDelay) * time.Second,
		})
	}
	return out
}
