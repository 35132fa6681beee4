package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryGameRepo реализует PlayerRepo и SessionRepo в памяти.
// Используется в тестах и как fallback для локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryGameRepo struct {
	mu       sync.RWMutex
	players  map[string]PlayerRecord  // player_id -> запись
	sessions map[string]SessionRecord // session_id -> запись
}

// NewMemoryGameRepo создает новый репозиторий в памяти.
func NewMemoryGameRepo() *MemoryGameRepo {
	return &MemoryGameRepo{
		players:  make(map[string]PlayerRecord),
		sessions: make(map[string]SessionRecord),
	}
}

// UpsertPlayer сохраняет имя, сессию и время активности игрока.
func (r *MemoryGameRepo) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	if rec.PlayerID == "" {
		return fmt.Errorf("пустой player_id")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.players[rec.PlayerID]
	stored.PlayerID = rec.PlayerID
	stored.Name = rec.Name
	stored.SessionID = rec.SessionID
	stored.LastActive = rec.LastActive
	r.players[rec.PlayerID] = stored
	return nil
}

// UpdateStatus сохраняет очки, позицию и повреждения корабля.
func (r *MemoryGameRepo) UpdateStatus(ctx context.Context, rec PlayerRecord) error {
	if rec.PlayerID == "" {
		return fmt.Errorf("пустой player_id")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.players[rec.PlayerID]
	stored.PlayerID = rec.PlayerID
	stored.Score = rec.Score
	stored.Position = rec.Position
	stored.Rotation = rec.Rotation
	stored.ShipDamage = rec.ShipDamage
	stored.LastUpdated = rec.LastUpdated
	r.players[rec.PlayerID] = stored
	return nil
}

// PlayersBySession возвращает всех игроков, числящихся за сессией.
func (r *MemoryGameRepo) PlayersBySession(ctx context.Context, sessionID string) ([]PlayerRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []PlayerRecord
	for _, rec := range r.players {
		if rec.SessionID == sessionID {
			records = append(records, rec)
		}
	}
	return records, nil
}

// TopScores возвращает топ limit игроков по очкам.
// Порядок детерминирован: очки по убыванию, при равенстве — player_id
// по возрастанию.
func (r *MemoryGameRepo) TopScores(ctx context.Context, sessionID string, limit int) ([]ScoreEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	var entries []ScoreEntry
	for _, rec := range r.players {
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		entries = append(entries, ScoreEntry{
			PlayerID: rec.PlayerID,
			Name:     rec.Name,
			Score:    rec.Score,
		})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// UpsertSession сохраняет агрегаты сессии.
func (r *MemoryGameRepo) UpsertSession(ctx context.Context, rec SessionRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("пустой session_id")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.SessionID] = rec
	return nil
}

// ActiveSessions возвращает сессии, обновлявшиеся после since.
func (r *MemoryGameRepo) ActiveSessions(ctx context.Context, since time.Time) ([]SessionRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []SessionRecord
	for _, rec := range r.sessions {
		if !rec.LastUpdated.Before(since) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Player возвращает запись игрока (для тестов).
func (r *MemoryGameRepo) Player(playerID string) (PlayerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.players[playerID]
	return rec, ok
}

// Session возвращает запись сессии (для тестов).
func (r *MemoryGameRepo) Session(sessionID string) (SessionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[sessionID]
	return rec, ok
}
