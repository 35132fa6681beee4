package game

import (
	"context"
	"time"

	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/logging"
)

// Maintenance — периодический обслуживающий цикл: ротация погоды,
// выселение молчащих игроков и удаление опустевших сессий после
// грейс-периода. Ошибка одного тика логируется и приводит к короткой
// паузе; цикл никогда не завершается из-за ошибки.
type Maintenance struct {
	store    *SessionStore
	gen      *WorldGenerator
	gateway  broadcast.Gateway
	presence *PresenceManager
	cfg      *config.GameConfig

	ioTimeout time.Duration
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMaintenance создаёт обслуживающий цикл.
func NewMaintenance(
	store *SessionStore,
	gen *WorldGenerator,
	gateway broadcast.Gateway,
	presence *PresenceManager,
	cfg *config.GameConfig,
) *Maintenance {
	return &Maintenance{
		store:     store,
		gen:       gen,
		gateway:   gateway,
		presence:  presence,
		cfg:       cfg,
		ioTimeout: 5 * time.Second,
		now:       time.Now,
	}
}

// Start запускает цикл в фоне. Повторный Start без Stop не поддерживается.
func (mt *Maintenance) Start(ctx context.Context) {
	ctx, mt.cancel = context.WithCancel(ctx)
	mt.done = make(chan struct{})

	go func() {
		defer close(mt.done)

		ticker := time.NewTicker(mt.cfg.Tick())
		defer ticker.Stop()

		logging.Info("🔧 Обслуживающий цикл запущен (тик %s)", mt.cfg.Tick())
		for {
			select {
			case <-ctx.Done():
				logging.Info("🔧 Обслуживающий цикл остановлен")
				return
			case <-ticker.C:
				if err := mt.tick(mt.now()); err != nil {
					logging.Error("Ошибка тика обслуживания: %v", err)
					// Короткая пауза после сбоя, затем обычный ритм
					select {
					case <-ctx.Done():
						logging.Info("🔧 Обслуживающий цикл остановлен")
						return
					case <-time.After(mt.cfg.Backoff()):
					}
				}
			}
		}
	}()
}

// Stop отменяет цикл и дожидается завершения текущего тика.
func (mt *Maintenance) Stop() {
	if mt.cancel != nil {
		mt.cancel()
		<-mt.done
	}
}

// tick выполняет один проход обслуживания. Ошибки рассылки собираются
// и возвращаются первой; изменения в памяти при этом уже зафиксированы.
func (mt *Maintenance) tick(now time.Time) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Ротация погоды: в каждой сессии свой случайный порог из полосы
	// [WeatherMin, WeatherMax); новое значение всегда отличается от текущего.
	for _, change := range mt.store.RotateWeatherDue(now, mt.gen.NextWeather) {
		logging.Info("🌀 Сессия %s: погода сменилась на %s", change.SessionID, change.Weather)

		ctx, cancel := context.WithTimeout(context.Background(), mt.ioTimeout)
		payload := WeatherChangedPayload{Weather: change.Weather}
		keep(mt.gateway.Room(ctx, change.SessionID, EventWeatherChanged, payload, ""))
		cancel()

		mt.presence.persistSession(change.Session)
	}

	// Выселение молчащих игроков. Комната получает player_left:
	// для клиентов серверный таймаут неотличим от явного отключения.
	cutoff := now.Add(-mt.cfg.IdleTimeout())
	for _, res := range mt.store.EvictIdle(cutoff, now) {
		logging.Info("⏰ Игрок %s выселен из сессии %s по таймауту", res.Player.ID, res.Player.SessionID)

		ctx, cancel := context.WithTimeout(context.Background(), mt.ioTimeout)
		left := PlayerLeftPayload{PlayerID: res.Player.ID}
		keep(mt.gateway.Room(ctx, res.Player.SessionID, EventPlayerLeft, left, ""))
		cancel()

		mt.presence.persistStatus(res.Player, now)
		if res.Session.SessionID != "" {
			mt.presence.persistSession(res.Session)
		}
	}

	// Удаление сессий, простоявших пустыми дольше грейс-периода.
	for _, id := range mt.store.ReapExpired(now, mt.cfg.CleanupGrace()) {
		logging.Info("🧹 Очищена заброшенная сессия %s", id)
	}

	mt.presence.updateCounts()
	return firstErr
}
