package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/ocean-game/internal/cache"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/game"
	"github.com/annel0/ocean-game/internal/logging"
	"github.com/annel0/ocean-game/internal/middleware"
	"github.com/annel0/ocean-game/internal/storage"
)

// RestServer — REST-поверхность только для чтения: активные сессии,
// игроки сессии и таблица рекордов. Игровое состояние через REST
// не изменяется.
type RestServer struct {
	router   *gin.Engine
	srv      *http.Server
	store    *game.SessionStore
	players  storage.PlayerRepo
	sessions storage.SessionRepo
	scores   *cache.ScoreCache
	cfg      *config.GameConfig
	metrics  *ServerMetrics
}

// Config содержит зависимости REST сервера.
type Config struct {
	Port     string              // адрес вида ":6767"
	Store    *game.SessionStore  // живое состояние для /health
	Players  storage.PlayerRepo  // долговременное хранилище игроков
	Sessions storage.SessionRepo // долговременное хранилище сессий
	Scores   *cache.ScoreCache   // кеш рекордов, может быть nil
	Game     *config.GameConfig
}

// NewRestServer создает новый REST API сервер.
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":6767"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("ocean_rest"))

	promMw := middleware.NewPrometheusMiddleware("ocean_rest")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:   router,
		store:    config.Store,
		players:  config.Players,
		sessions: config.Sessions,
		scores:   config.Scores,
		cfg:      config.Game,
		metrics:  NewServerMetrics(),
	}
	server.srv = &http.Server{
		Addr:    config.Port,
		Handler: router,
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API.
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/sessions", rs.handleSessions)
		api.GET("/players", rs.handlePlayers)
		api.GET("/highscores", rs.handleHighScores)
		api.GET("/server", rs.handleServerInfo)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API.
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleSessions возвращает сессии, активные за последнее окно
// (по умолчанию 15 минут).
func (rs *RestServer) handleSessions(c *gin.Context) {
	since := time.Now().Add(-rs.cfg.GetSessionActiveWindow())

	records, err := rs.sessions.ActiveSessions(c.Request.Context(), since)
	if err != nil {
		logging.Error("Ошибка выборки сессий: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения хранилища",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Активные сессии",
		Data: map[string]interface{}{
			"sessions": records,
			"total":    len(records),
		},
	})
}

// handlePlayers возвращает игроков сессии из долговременного хранилища,
// включая уже отключившихся.
func (rs *RestServer) handlePlayers(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметр session_id обязателен",
		})
		return
	}

	records, err := rs.players.PlayersBySession(c.Request.Context(), sessionID)
	if err != nil {
		logging.Error("Ошибка выборки игроков сессии %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения хранилища",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Игроки сессии",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"players":    records,
			"total":      len(records),
		},
	})
}

// handleHighScores возвращает таблицу рекордов. session_id пустой —
// глобальная таблица; limit ограничен сверху конфигурацией.
func (rs *RestServer) handleHighScores(c *gin.Context) {
	sessionID := c.Query("session_id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	if max := rs.cfg.GetHighScoresLimitMax(); limit > max {
		limit = max
	}

	var (
		scores []storage.ScoreEntry
		err    error
	)
	if rs.scores != nil {
		scores, err = rs.scores.TopScores(c.Request.Context(), sessionID, limit)
	} else {
		scores, err = rs.players.TopScores(c.Request.Context(), sessionID, limit)
	}
	if err != nil {
		logging.Error("Ошибка выборки рекордов: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения хранилища",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Таблица рекордов",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"scores":     scores,
			"limit":      limit,
		},
	})
}

// handleServerInfo возвращает информацию о процессе сервера.
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	info := map[string]interface{}{
		"name":        "Ocean Game Server",
		"status":      "running",
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.1f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
		"memory":      rs.metrics.GetDetailedMemoryStats(),
		"server_time": time.Now().Unix(),
	}
	if rs.scores != nil {
		info["score_cache"] = rs.scores.Metrics()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// handleHealth — проверка состояния с живыми счётчиками из памяти.
func (rs *RestServer) handleHealth(c *gin.Context) {
	sessions, players := rs.store.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": sessions,
		"players":  players,
		"time":     time.Now().Unix(),
	})
}

// Start запускает REST сервер в фоне.
func (rs *RestServer) Start() {
	go func() {
		logging.Info("🌐 REST API слушает %s", rs.srv.Addr)
		if err := rs.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("REST сервер завершился с ошибкой: %v", err)
		}
	}()
}

// Stop останавливает сервер, дожидаясь активных запросов.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
