package game

import (
	"sync"
	"time"
)

// SessionStore владеет каноническим состоянием всех сессий и игроков.
// Остальные компоненты изменяют состояние только через его операции;
// наружу отдаются только копии (снимки), никогда — живые указатели.
//
// Дисциплина блокировок двухуровневая: mu защищает сами карты
// (создание/удаление сессий и игроков, индекс соединений), мьютекс
// сессии — её мир и изменяемые поля её игроков. Порядок взятия всегда
// mu -> session.mu, каждая операция ограничена одной сессией, поэтому
// несвязанные сессии не блокируют друг друга.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	players  map[string]*Player
	byConn   map[string]string // connID -> playerID
}

// NewSessionStore создает пустое хранилище сессий.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		players:  make(map[string]*Player),
		byConn:   make(map[string]string),
	}
}

// JoinResult — результат атомарного входа в сессию.
type JoinResult struct {
	Created bool // сессия создана этим входом

	State   GameStatePayload    // снимок мира для подключившегося
	Joined  PlayerJoinedPayload // анонс для остальной комнаты
	Player  PlayerSnapshot
	Session SessionSnapshot
}

// DisconnectResult — результат атомарного отключения игрока.
type DisconnectResult struct {
	Player  PlayerSnapshot
	Session SessionSnapshot
	Emptied bool // комната опустела и помечена на отложенное удаление
}

// CollectResult — результат атомарного сбора сокровища.
type CollectResult struct {
	Removed Treasure
	Added   Treasure
	Player  PlayerSnapshot
	Session SessionSnapshot
}

// WeatherChange — смена погоды в сессии, выполненная обслуживающим циклом.
type WeatherChange struct {
	SessionID string
	Weather   Weather
	Session   SessionSnapshot
}

// Join атомарно добавляет игрока в сессию, создавая её при необходимости
// через initWorld. Повторный вход с тем же id обновляет запись, а не
// дублирует её; pendingCleanup у сессии при этом снимается.
func (st *SessionStore) Join(req JoinRequest, now time.Time, initWorld func() (Weather, []Treasure, []Hazard, time.Duration)) JoinResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, exists := st.sessions[req.SessionID]
	created := false
	if !exists {
		weather, treasures, hazards, interval := initWorld()
		sess = &Session{
			id:                req.SessionID,
			members:           make(map[string]struct{}),
			weather:           weather,
			lastWeatherChange: now,
			weatherInterval:   interval,
			treasures:         treasures,
			hazards:           hazards,
			createdAt:         now,
		}
		st.sessions[req.SessionID] = sess
		created = true
	}

	// Переподключение: игрок мог числиться в другой сессии или за другим
	// соединением — вычищаем старые связи, прежде чем записывать новые.
	if old, ok := st.players[req.PlayerID]; ok {
		delete(st.byConn, old.connID)
		if old.sessionID != req.SessionID {
			if oldSess, ok := st.sessions[old.sessionID]; ok {
				st.detachLocked(oldSess, old.id, now)
			}
		}
	}

	player := &Player{
		id:         req.PlayerID,
		sessionID:  req.SessionID,
		connID:     req.ConnID,
		name:       req.Name,
		position:   req.Position,
		rotation:   req.Rotation,
		velocity:   req.Velocity,
		score:      0,
		shipDamage: 0,
		lastUpdate: now,
	}
	st.players[req.PlayerID] = player
	st.byConn[req.ConnID] = req.PlayerID

	sess.mu.Lock()
	sess.members[req.PlayerID] = struct{}{}
	sess.pendingCleanup = false
	sess.cleanupMarkedAt = time.Time{}

	state := GameStatePayload{
		SessionID: sess.id,
		PlayerID:  player.id,
		Weather:   sess.weather,
		Treasures: append([]Treasure(nil), sess.treasures...),
		Hazards:   append([]Hazard(nil), sess.hazards...),
		Players:   st.rosterLocked(sess),
	}
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	return JoinResult{
		Created: created,
		State:   state,
		Joined: PlayerJoinedPayload{
			PlayerID: player.id,
			Name:     player.name,
			Position: player.position,
			Rotation: player.rotation,
		},
		Player:  player.snapshot(),
		Session: snap,
	}
}

// UpdateTransform обновляет позицию игрока и время его активности.
// Возвращает false, если игрок или сессия неизвестны — вызывающий код
// молча игнорирует такое событие. Второй результат — идентификатор
// соединения игрока, исключаемый из рассылки.
func (st *SessionStore) UpdateTransform(req TransformRequest, now time.Time) (PlayerMovedPayload, string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	player, sess, ok := st.lookupLocked(req.PlayerID, req.SessionID)
	if !ok {
		return PlayerMovedPayload{}, "", false
	}

	sess.mu.Lock()
	player.position = req.Position
	player.rotation = req.Rotation
	player.velocity = req.Velocity
	player.lastUpdate = now
	payload := PlayerMovedPayload{
		PlayerID: player.id,
		Position: player.position,
		Rotation: player.rotation,
		Velocity: player.velocity,
	}
	connID := player.connID
	sess.mu.Unlock()

	return payload, connID, true
}

// UpdateStatus перезаписывает очки и повреждения корабля.
func (st *SessionStore) UpdateStatus(req StatusRequest, now time.Time) (PlayerSnapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	player, sess, ok := st.lookupLocked(req.PlayerID, req.SessionID)
	if !ok {
		return PlayerSnapshot{}, false
	}

	sess.mu.Lock()
	player.score = req.Score
	player.shipDamage = req.ShipDamage
	player.lastUpdate = now
	snap := player.snapshot()
	sess.mu.Unlock()

	return snap, true
}

// CollectTreasure атомарно удаляет сокровище, начисляет его стоимость
// игроку и ставит замену. При гонке двух заявок на одно сокровище ровно
// одна наблюдает успех; вторая получает false и идёт по пути no-op.
func (st *SessionStore) CollectTreasure(req TreasureRequest, replacement Treasure, now time.Time) (CollectResult, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	player, sess, ok := st.lookupLocked(req.PlayerID, req.SessionID)
	if !ok {
		return CollectResult{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	idx := -1
	for i, t := range sess.treasures {
		if t.ID == req.TreasureID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CollectResult{}, false
	}

	removed := sess.treasures[idx]
	sess.treasures = append(sess.treasures[:idx], sess.treasures[idx+1:]...)
	sess.treasures = append(sess.treasures, replacement)

	player.score += removed.Value

	return CollectResult{
		Removed: removed,
		Added:   replacement,
		Player:  player.snapshot(),
		Session: sess.snapshotLocked(),
	}, true
}

// DisconnectByConn удаляет игрока по идентификатору его соединения.
// Опустевшая сессия не удаляется сразу, а помечается на отложенную
// очистку — переподключение в течение грейс-периода сохраняет мир.
func (st *SessionStore) DisconnectByConn(connID string, now time.Time) (DisconnectResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	playerID, ok := st.byConn[connID]
	if !ok {
		return DisconnectResult{}, false
	}
	return st.removePlayerLocked(playerID, now)
}

// EvictIdle удаляет игроков, молчащих дольше отсечки.
// Вызывается обслуживающим циклом.
func (st *SessionStore) EvictIdle(cutoff time.Time, now time.Time) []DisconnectResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	var idle []string
	for id, p := range st.players {
		sess := st.sessions[p.sessionID]
		if sess == nil {
			idle = append(idle, id)
			continue
		}
		sess.mu.RLock()
		stale := p.lastUpdate.Before(cutoff)
		sess.mu.RUnlock()
		if stale {
			idle = append(idle, id)
		}
	}

	var results []DisconnectResult
	for _, id := range idle {
		if res, ok := st.removePlayerLocked(id, now); ok {
			results = append(results, res)
		}
	}
	return results
}

// RotateWeatherDue меняет погоду в сессиях, у которых истёк интервал.
// next обязан вернуть значение, отличное от текущего.
func (st *SessionStore) RotateWeatherDue(now time.Time, next func(current Weather) (Weather, time.Duration)) []WeatherChange {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var changes []WeatherChange
	for _, sess := range st.sessions {
		sess.mu.Lock()
		if now.Sub(sess.lastWeatherChange) > sess.weatherInterval {
			weather, interval := next(sess.weather)
			sess.weather = weather
			sess.lastWeatherChange = now
			sess.weatherInterval = interval
			changes = append(changes, WeatherChange{
				SessionID: sess.id,
				Weather:   weather,
				Session:   sess.snapshotLocked(),
			})
		}
		sess.mu.Unlock()
	}
	return changes
}

// ReapExpired удаляет сессии, простоявшие пустыми дольше грейс-периода.
// Возвращает идентификаторы удалённых сессий.
func (st *SessionStore) ReapExpired(now time.Time, grace time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var reaped []string
	for id, sess := range st.sessions {
		sess.mu.RLock()
		expired := sess.pendingCleanup &&
			len(sess.members) == 0 &&
			now.Sub(sess.cleanupMarkedAt) > grace
		sess.mu.RUnlock()

		if expired {
			delete(st.sessions, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

// Counts возвращает число живых сессий и игроков (для метрик).
func (st *SessionStore) Counts() (sessions, players int) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions), len(st.players)
}

// SessionSnapshot возвращает снимок агрегатов сессии.
func (st *SessionStore) SessionSnapshot(sessionID string) (SessionSnapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return SessionSnapshot{}, false
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.snapshotLocked(), true
}

// SessionPendingCleanup сообщает, помечена ли сессия на удаление (для тестов).
func (st *SessionStore) SessionPendingCleanup(sessionID string) (bool, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return false, false
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.pendingCleanup, true
}

// Roster возвращает снимки игроков сессии.
func (st *SessionStore) Roster(sessionID string) []PlayerSnapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return st.rosterLocked(sess)
}

// PlayerSnapshotByID возвращает снимок игрока.
func (st *SessionStore) PlayerSnapshotByID(playerID string) (PlayerSnapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	player, ok := st.players[playerID]
	if !ok {
		return PlayerSnapshot{}, false
	}
	sess := st.sessions[player.sessionID]
	if sess != nil {
		sess.mu.RLock()
		defer sess.mu.RUnlock()
	}
	return player.snapshot(), true
}

// lookupLocked находит игрока и его сессию; вызывается под st.mu.
// Проверяет двустороннюю согласованность: игрок обязан числиться именно
// в той сессии, на которую ссылается событие.
func (st *SessionStore) lookupLocked(playerID, sessionID string) (*Player, *Session, bool) {
	player, ok := st.players[playerID]
	if !ok || player.sessionID != sessionID {
		return nil, nil, false
	}
	sess, ok := st.sessions[sessionID]
	if !ok {
		return nil, nil, false
	}
	return player, sess, true
}

// rosterLocked собирает снимки игроков; вызывается под st.mu и sess.mu.
func (st *SessionStore) rosterLocked(sess *Session) []PlayerSnapshot {
	roster := make([]PlayerSnapshot, 0, len(sess.members))
	for id := range sess.members {
		if p, ok := st.players[id]; ok {
			roster = append(roster, p.snapshot())
		}
	}
	return roster
}

// removePlayerLocked удаляет игрока и отвязывает его от сессии;
// вызывается под полным st.mu.
func (st *SessionStore) removePlayerLocked(playerID string, now time.Time) (DisconnectResult, bool) {
	player, ok := st.players[playerID]
	if !ok {
		return DisconnectResult{}, false
	}

	delete(st.players, playerID)
	delete(st.byConn, player.connID)

	sess, ok := st.sessions[player.sessionID]
	if !ok {
		return DisconnectResult{Player: player.snapshot()}, true
	}

	sess.mu.Lock()
	emptied := st.detachFromLocked(sess, playerID, now)
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	return DisconnectResult{
		Player:  player.snapshot(),
		Session: snap,
		Emptied: emptied,
	}, true
}

// detachLocked — как detachFromLocked, но сам берёт мьютекс сессии.
func (st *SessionStore) detachLocked(sess *Session, playerID string, now time.Time) {
	sess.mu.Lock()
	st.detachFromLocked(sess, playerID, now)
	sess.mu.Unlock()
}

// detachFromLocked убирает игрока из состава сессии; вызывается под
// sess.mu. Опустевшую сессию помечает на отложенную очистку.
func (st *SessionStore) detachFromLocked(sess *Session, playerID string, now time.Time) bool {
	delete(sess.members, playerID)
	if len(sess.members) == 0 && !sess.pendingCleanup {
		sess.pendingCleanup = true
		sess.cleanupMarkedAt = now
		return true
	}
	return false
}
