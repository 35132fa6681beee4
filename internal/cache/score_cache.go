package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/ocean-game/internal/logging"
	"github.com/annel0/ocean-game/internal/storage"
)

// ScoreCache — Read-Through кеш таблиц рекордов поверх Redis.
// Снимает с Mongo нагрузку REST-опросов: при промахе список
// загружается из репозитория и кладётся в Redis с коротким TTL.
//
// Ошибки Redis не фатальны — кеш деградирует до прямого чтения
// из репозитория.
type ScoreCache struct {
	client  *redis.Client
	players storage.PlayerRepo
	ttl     time.Duration

	hits   int64
	misses int64
}

// ScoreCacheMetrics — счётчики попаданий для диагностики.
type ScoreCacheMetrics struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// NewScoreCache подключается к Redis и возвращает готовый кеш.
func NewScoreCache(addr string, players storage.PlayerRepo, ttl time.Duration) (*ScoreCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("подключение к Redis: %w", err)
	}

	logging.Info("📦 Кеш рекордов подключён к Redis: %s (TTL %s)", addr, ttl)
	return &ScoreCache{
		client:  rdb,
		players: players,
		ttl:     ttl,
	}, nil
}

// TopScores возвращает топ очков сессии (sessionID == "" — по всем
// сессиям). Результат кешируется на ttl.
func (c *ScoreCache) TopScores(ctx context.Context, sessionID string, limit int) ([]storage.ScoreEntry, error) {
	key := c.key(sessionID, limit)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var scores []storage.ScoreEntry
		if jsonErr := json.Unmarshal(raw, &scores); jsonErr == nil {
			atomic.AddInt64(&c.hits, 1)
			return scores, nil
		}
		// Битая запись, перечитываем из репозитория
		logging.Warn("Повреждённая запись кеша %s, игнорируем", key)
	} else if err != redis.Nil {
		logging.Warn("Ошибка чтения кеша %s: %v", key, err)
	}

	atomic.AddInt64(&c.misses, 1)

	scores, err := c.players.TopScores(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(scores); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logging.Warn("Ошибка записи кеша %s: %v", key, err)
		}
	}
	return scores, nil
}

// Metrics возвращает счётчики попаданий кеша.
func (c *ScoreCache) Metrics() ScoreCacheMetrics {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	m := ScoreCacheMetrics{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		m.HitRatio = float64(hits) / float64(total)
	}
	return m
}

// Close закрывает соединение с Redis.
func (c *ScoreCache) Close() error {
	return c.client.Close()
}

func (c *ScoreCache) key(sessionID string, limit int) string {
	if sessionID == "" {
		sessionID = "_all"
	}
	return fmt.Sprintf("ocean:highscores:%s:%d", sessionID, limit)
}
