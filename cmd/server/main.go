package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/ocean-game/internal/api"
	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/cache"
	"github.com/annel0/ocean-game/internal/channel"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/game"
	"github.com/annel0/ocean-game/internal/logging"
	"github.com/annel0/ocean-game/internal/observability"
	"github.com/annel0/ocean-game/internal/storage"
)

func main() {
	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🌊 Запуск Ocean Game Server...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(os.Getenv("OCEAN_CONFIG"))
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	// Без долговременного хранилища таблица рекордов теряет вышедших
	// игроков, поэтому отсутствие Mongo — фатальная ошибка запуска.
	if err := cfg.Validate(); err != nil {
		logging.Error("❌ Некорректная конфигурация: %v", err)
		log.Fatalf("❌ Некорректная конфигурация: %v", err)
	}

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("📡 Конфигурация: REST=%s, NATS=%s, Mongo=%s",
		restAddr, cfg.Nats.GetURL(), cfg.Mongo.GetDatabase())

	// === OBSERVABILITY ===
	shutdownTelemetry, err := observability.InitTelemetry(context.Background(), "ocean-game-server")
	if err != nil {
		logging.Warn("OpenTelemetry недоступен, продолжаем без трассировки: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ХРАНИЛИЩЕ ===
	logging.Debug("Подключение к MongoDB...")
	repo, err := storage.NewMongoGameRepo(storage.MongoConfig{
		URI:      cfg.Mongo.GetURI(),
		Database: cfg.Mongo.GetDatabase(),
	})
	if err != nil {
		logging.Error("❌ Ошибка подключения к MongoDB: %v", err)
		log.Fatalf("❌ Ошибка подключения к MongoDB: %v", err)
	}

	// Кеш рекордов опционален: без Redis REST читает напрямую из Mongo
	var scores *cache.ScoreCache
	if addr := cfg.Redis.GetAddr(); addr != "" {
		scores, err = cache.NewScoreCache(addr, repo, cfg.Redis.GetTTL())
		if err != nil {
			logging.Warn("Redis недоступен, кеш рекордов выключен: %v", err)
			scores = nil
		}
	}

	// === ШИНА СООБЩЕНИЙ ===
	logging.Debug("Подключение к NATS...")
	gateway, err := broadcast.Connect(cfg.Nats.GetURL())
	if err != nil {
		logging.Error("❌ Ошибка подключения к NATS: %v", err)
		log.Fatalf("❌ Ошибка подключения к NATS: %v", err)
	}

	// === ИГРОВОЕ ЯДРО ===
	store := game.NewSessionStore()
	gen := game.NewWorldGenerator(time.Now().UnixNano(), &cfg.Game)
	metrics := game.NewMetrics()
	presence := game.NewPresenceManager(store, gen, gateway, repo, repo, &cfg.Game, metrics)

	ingress := channel.NewNatsIngress(gateway.Conn(), presence)
	if err := ingress.Start(); err != nil {
		logging.Error("❌ Ошибка подписки на клиентские события: %v", err)
		log.Fatalf("❌ Ошибка подписки на клиентские события: %v", err)
	}

	maintenance := game.NewMaintenance(store, gen, gateway, presence, &cfg.Game)
	maintenance.Start(context.Background())

	// === REST API ===
	rest := api.NewRestServer(api.Config{
		Port:     restAddr,
		Store:    store,
		Players:  repo,
		Sessions: repo,
		Scores:   scores,
		Game:     &cfg.Game,
	})
	rest.Start()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   ⚓ Клиентские события: %s", cfg.Nats.GetURL())
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)

	// Ждем сигнала для завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	// Сначала перестаём принимать события, затем дожидаемся фоновых
	// записей и только потом закрываем соединения.
	if err := ingress.Stop(); err != nil {
		logging.Error("Ошибка остановки приёма событий: %v", err)
	}
	maintenance.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки REST API: %v", err)
	}

	presence.Wait()
	gateway.Close()
	if scores != nil {
		_ = scores.Close()
	}
	if err := repo.Close(); err != nil {
		logging.Error("Ошибка закрытия MongoDB: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}
