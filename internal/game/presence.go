package game

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/logging"
	"github.com/annel0/ocean-game/internal/storage"
	"github.com/annel0/ocean-game/internal/vec"
)

// PresenceManager обрабатывает события подключения, движения и сбора
// сокровищ: изменяет SessionStore и запускает побочные эффекты.
//
// Контракт побочных эффектов: рассылка и персистентность выполняются
// ПОСЛЕ фиксации изменения в хранилище и вне его блокировок. Запись в БД
// асинхронная и best-effort: ошибка логируется, изменение в памяти не
// откатывается, клиенту ничего не сообщается.
type PresenceManager struct {
	store    *SessionStore
	gen      *WorldGenerator
	gateway  broadcast.Gateway
	players  storage.PlayerRepo
	sessions storage.SessionRepo
	cfg      *config.GameConfig
	metrics  *Metrics

	ioTimeout time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewPresenceManager создаёт менеджер присутствия.
func NewPresenceManager(
	store *SessionStore,
	gen *WorldGenerator,
	gateway broadcast.Gateway,
	players storage.PlayerRepo,
	sessions storage.SessionRepo,
	cfg *config.GameConfig,
	metrics *Metrics,
) *PresenceManager {
	return &PresenceManager{
		store:     store,
		gen:       gen,
		gateway:   gateway,
		players:   players,
		sessions:  sessions,
		cfg:       cfg,
		metrics:   metrics,
		ioTimeout: 5 * time.Second,
		now:       time.Now,
	}
}

// HandleJoin обрабатывает вход игрока в сессию.
// Пустой player_id означает нового игрока; пустое имя и сессия получают
// значения по умолчанию, как в клиентском протоколе.
func (m *PresenceManager) HandleJoin(ctx context.Context, req JoinRequest) {
	if req.ConnID == "" {
		return // событие без соединения — некому отвечать
	}
	if req.PlayerID == "" {
		req.PlayerID = NewID()
	}
	if req.Name == "" {
		req.Name = "Anonymous"
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Position.Equals(vec.Vec3{}) {
		req.Position = vec.Vec3{X: 0, Y: 0.5, Z: 0}
	}

	now := m.now()
	res := m.store.Join(req, now, m.gen.InitializeSession)
	m.metrics.event(EventJoinGame)
	m.updateCounts()

	if res.Created {
		logging.Info("🌊 Создана сессия %s: погода=%s, сокровищ=%d, препятствий=%d",
			res.Session.SessionID, res.Session.Weather,
			res.Session.TreasureCount, res.Session.HazardCount)
		m.persistSession(res.Session)
	}

	logging.Info("⚓ Игрок %s (%s) вошёл в сессию %s", req.PlayerID, req.Name, req.SessionID)
	m.persistPlayer(res.Player, now)

	bctx, cancel := context.WithTimeout(ctx, m.ioTimeout)
	defer cancel()
	if err := m.gateway.Direct(bctx, req.ConnID, EventGameState, res.State); err != nil {
		logging.Error("Ошибка отправки game_state игроку %s: %v", req.PlayerID, err)
	}
	if err := m.gateway.Room(bctx, req.SessionID, EventPlayerJoined, res.Joined, req.ConnID); err != nil {
		logging.Error("Ошибка рассылки player_joined в %s: %v", req.SessionID, err)
	}
}

// HandleTransform обрабатывает высокочастотное обновление позиции.
// Неизвестный игрок или сессия — молчаливый no-op: событие best-effort
// и никогда не возвращает ошибку отправителю.
func (m *PresenceManager) HandleTransform(ctx context.Context, req TransformRequest) {
	if req.PlayerID == "" || req.SessionID == "" {
		return
	}

	payload, connID, ok := m.store.UpdateTransform(req, m.now())
	if !ok {
		return
	}
	m.metrics.event(EventPlayerUpdate)

	bctx, cancel := context.WithTimeout(ctx, m.ioTimeout)
	defer cancel()
	if err := m.gateway.Room(bctx, req.SessionID, EventPlayerMoved, payload, connID); err != nil {
		logging.Warn("Ошибка рассылки player_moved в %s: %v", req.SessionID, err)
	}
	// Движение не персистится: слишком часто, долговечность не требуется.
}

// HandleStatus обрабатывает обновление очков и повреждений.
func (m *PresenceManager) HandleStatus(ctx context.Context, req StatusRequest) {
	if req.PlayerID == "" || req.SessionID == "" {
		return
	}

	now := m.now()
	snap, ok := m.store.UpdateStatus(req, now)
	if !ok {
		return
	}
	m.metrics.event(EventStatusUpdate)

	m.persistStatus(snap, now)
	m.broadcastHighScores(req.SessionID)
}

// HandleTreasure обрабатывает заявку на сбор сокровища. Замена
// генерируется заранее: удаление и вставка становятся одной атомарной
// операцией хранилища, и ровно один из гоняющихся сборщиков выигрывает.
func (m *PresenceManager) HandleTreasure(ctx context.Context, req TreasureRequest) {
	if req.PlayerID == "" || req.SessionID == "" || req.TreasureID == "" {
		return
	}

	now := m.now()
	replacement := m.gen.NewTreasure()
	res, ok := m.store.CollectTreasure(req, replacement, now)
	if !ok {
		return // сокровище уже собрано или ссылки неизвестны
	}
	m.metrics.event(EventTreasureCollected)
	m.metrics.treasureCollected()

	logging.Debug("💰 Игрок %s собрал %s (+%d) в сессии %s",
		req.PlayerID, res.Removed.Type, res.Removed.Value, req.SessionID)

	m.persistStatus(res.Player, now)

	bctx, cancel := context.WithTimeout(ctx, m.ioTimeout)
	defer cancel()
	update := TreasureUpdatePayload{
		Removed: []string{res.Removed.ID},
		Added:   []Treasure{res.Added},
	}
	if err := m.gateway.Room(bctx, req.SessionID, EventTreasureUpdate, update, ""); err != nil {
		logging.Error("Ошибка рассылки treasure_update в %s: %v", req.SessionID, err)
	}

	m.broadcastHighScores(req.SessionID)
}

// HandleDisconnect обрабатывает разрыв соединения. Отключение
// неизвестного соединения — молчаливый no-op.
func (m *PresenceManager) HandleDisconnect(ctx context.Context, connID string) {
	if connID == "" {
		return
	}

	now := m.now()
	res, ok := m.store.DisconnectByConn(connID, now)
	if !ok {
		return
	}
	m.metrics.event(EventDisconnect)
	m.updateCounts()

	logging.Info("🚪 Игрок %s покинул сессию %s", res.Player.ID, res.Player.SessionID)
	if res.Emptied {
		logging.Info("🕐 Сессия %s опустела, помечена на отложенную очистку", res.Player.SessionID)
	}

	bctx, cancel := context.WithTimeout(ctx, m.ioTimeout)
	defer cancel()
	left := PlayerLeftPayload{PlayerID: res.Player.ID}
	if err := m.gateway.Room(bctx, res.Player.SessionID, EventPlayerLeft, left, ""); err != nil {
		logging.Warn("Ошибка рассылки player_left в %s: %v", res.Player.SessionID, err)
	}

	// Финальное состояние — в БД
	m.persistStatus(res.Player, now)
	m.persistSession(res.Session)
}

// Wait дожидается завершения всех асинхронных побочных эффектов
// (используется при graceful shutdown).
func (m *PresenceManager) Wait() {
	m.wg.Wait()
}

// async запускает побочный эффект в отдельной горутине с собственным
// контекстом: отключение клиента не должно отменять уже зафиксированную
// запись.
func (m *PresenceManager) async(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.ioTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *PresenceManager) persistPlayer(snap PlayerSnapshot, now time.Time) {
	m.async(func(ctx context.Context) {
		rec := storage.PlayerRecord{
			PlayerID:   snap.ID,
			Name:       snap.Name,
			SessionID:  snap.SessionID,
			LastActive: now,
		}
		if err := m.players.UpsertPlayer(ctx, rec); err != nil {
			m.metrics.persistError()
			logging.Error("Ошибка сохранения игрока %s: %v", snap.ID, err)
		}
	})
}

func (m *PresenceManager) persistStatus(snap PlayerSnapshot, now time.Time) {
	m.async(func(ctx context.Context) {
		rec := storage.PlayerRecord{
			PlayerID:    snap.ID,
			Score:       snap.Score,
			Position:    snap.Position,
			Rotation:    snap.Rotation,
			ShipDamage:  snap.ShipDamage,
			LastUpdated: now,
		}
		if err := m.players.UpdateStatus(ctx, rec); err != nil {
			m.metrics.persistError()
			logging.Error("Ошибка сохранения статуса игрока %s: %v", snap.ID, err)
		}
	})
}

func (m *PresenceManager) persistSession(snap SessionSnapshot) {
	m.async(func(ctx context.Context) {
		rec := storage.SessionRecord{
			SessionID:      snap.SessionID,
			Weather:        string(snap.Weather),
			TreasuresCount: snap.TreasureCount,
			HazardsCount:   snap.HazardCount,
			PlayersCount:   snap.PlayerCount,
			LastUpdated:    m.now(),
		}
		if err := m.sessions.UpsertSession(ctx, rec); err != nil {
			m.metrics.persistError()
			logging.Error("Ошибка сохранения сессии %s: %v", snap.SessionID, err)
		}
	})
}

// broadcastHighScores читает топ из долговременного хранилища и
// рассылает его комнате. Выполняется асинхронно: чтение БД не должно
// задерживать обработку событий других игроков. Порядок относительно
// последующих событий той же сессии не гарантируется (eventual).
func (m *PresenceManager) broadcastHighScores(sessionID string) {
	m.async(func(ctx context.Context) {
		scores, err := m.players.TopScores(ctx, sessionID, m.cfg.GetLeaderboardSize())
		if err != nil {
			m.metrics.persistError()
			logging.Error("Ошибка выборки таблицы лидеров %s: %v", sessionID, err)
			return
		}
		payload := HighScoresPayload{Scores: scores}
		if err := m.gateway.Room(ctx, sessionID, EventHighScores, payload, ""); err != nil {
			logging.Warn("Ошибка рассылки high_scores в %s: %v", sessionID, err)
		}
	})
}

func (m *PresenceManager) updateCounts() {
	sessions, players := m.store.Counts()
	m.metrics.setCounts(sessions, players)
}
