package storage

import (
	"context"
	"time"

	"github.com/annel0/ocean-game/internal/vec"
)

// PlayerRecord — документ игрока в долговременном хранилище.
// Хранилище переживает отключение игрока: таблица лидеров обязана
// учитывать и тех, кто уже вышел из сессии.
type PlayerRecord struct {
	PlayerID    string    `bson:"player_id" json:"player_id"`
	Name        string    `bson:"name" json:"name"`
	SessionID   string    `bson:"session_id" json:"session_id"`
	Score       int       `bson:"score" json:"score"`
	Position    vec.Vec3  `bson:"position" json:"position"`
	Rotation    vec.Vec3  `bson:"rotation" json:"rotation"`
	ShipDamage  int       `bson:"ship_damage" json:"ship_damage"`
	LastActive  time.Time `bson:"last_active" json:"last_active"`
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
}

// SessionRecord — документ сессии: только агрегаты, живое состояние
// мира авторитетно в памяти и в хранилище не дублируется.
type SessionRecord struct {
	SessionID      string    `bson:"session_id" json:"session_id"`
	Weather        string    `bson:"weather" json:"weather"`
	TreasuresCount int       `bson:"treasures_count" json:"treasures_count"`
	HazardsCount   int       `bson:"hazards_count" json:"hazards_count"`
	PlayersCount   int       `bson:"players_count" json:"players_count"`
	LastUpdated    time.Time `bson:"last_updated" json:"last_updated"`
}

// ScoreEntry — строка таблицы лидеров.
type ScoreEntry struct {
	PlayerID string `bson:"player_id" json:"player_id"`
	Name     string `bson:"name" json:"name"`
	Score    int    `bson:"score" json:"score"`
}

// PlayerRepo определяет интерфейс долговременного хранилища игроков.
// Все записи best-effort: вызывающий код логирует ошибку и продолжает,
// откат изменений в памяти не выполняется.
type PlayerRepo interface {
	// UpsertPlayer сохраняет имя, сессию и время активности при входе.
	UpsertPlayer(ctx context.Context, rec PlayerRecord) error

	// UpdateStatus сохраняет очки, позицию и повреждения корабля.
	UpdateStatus(ctx context.Context, rec PlayerRecord) error

	// PlayersBySession возвращает всех игроков, числящихся за сессией.
	PlayersBySession(ctx context.Context, sessionID string) ([]PlayerRecord, error)

	// TopScores возвращает топ limit игроков по очкам.
	// sessionID == "" означает глобальную выборку.
	// Порядок детерминирован: очки по убыванию, при равенстве — player_id
	// по возрастанию.
	TopScores(ctx context.Context, sessionID string, limit int) ([]ScoreEntry, error)
}

// SessionRepo определяет интерфейс долговременного хранилища сессий.
type SessionRepo interface {
	// UpsertSession сохраняет агрегаты сессии.
	UpsertSession(ctx context.Context, rec SessionRecord) error

	// ActiveSessions возвращает сессии, обновлявшиеся после since.
	ActiveSessions(ctx context.Context, since time.Time) ([]SessionRecord, error)
}
