package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Redis  RedisConfig  `yaml:"redis"`
	Nats   NatsConfig   `yaml:"nats"`
	Game   GameConfig   `yaml:"game"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type NatsConfig struct {
	URL string `yaml:"url"`
}

// GameConfig содержит тайминги и размеры игрового мира.
// Все значения имеют дефолты; нулевое значение в YAML означает "дефолт".
type GameConfig struct {
	TickSeconds           int     `yaml:"tick_seconds"`            // период обслуживающего цикла
	BackoffSeconds        int     `yaml:"backoff_seconds"`         // пауза после ошибки тика
	IdleTimeoutSeconds    int     `yaml:"idle_timeout_seconds"`    // выселение молчащих игроков
	CleanupGraceSeconds   int     `yaml:"cleanup_grace_seconds"`   // грейс перед удалением пустой сессии
	WeatherMinSeconds     int     `yaml:"weather_min_seconds"`     // нижняя граница интервала смены погоды
	WeatherMaxSeconds     int     `yaml:"weather_max_seconds"`     // верхняя граница (не включительно)
	TreasureCount         int     `yaml:"treasure_count"`          // целевое число сокровищ в сессии
	HazardCount           int     `yaml:"hazard_count"`            // число препятствий в сессии
	WorldSize             float64 `yaml:"world_size"`              // сторона квадрата мира
	LeaderboardSize       int     `yaml:"leaderboard_size"`        // размер рассылаемого топа
	SessionActiveMinutes  int     `yaml:"session_active_minutes"`  // окно "активных" сессий для REST
	HighScoresLimitMax    int     `yaml:"highscores_limit_max"`    // максимальный limit для REST
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "OCEAN_REST_PORT", 6767)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "OCEAN_METRICS_PORT", 2112)
}

// GetURI возвращает строку подключения MongoDB (config -> env MONGODB_URI).
func (m *MongoConfig) GetURI() string {
	if m.URI != "" {
		return m.URI
	}
	return os.Getenv("MONGODB_URI")
}

// GetDatabase возвращает имя базы данных.
func (m *MongoConfig) GetDatabase() string {
	if m.Database != "" {
		return m.Database
	}
	return "oceanGame"
}

// Validate проверяет обязательные параметры.
// Отсутствие строки подключения MongoDB — фатальная ошибка запуска.
func (c *Config) Validate() error {
	if c.Mongo.GetURI() == "" {
		return errors.New("не задана строка подключения MongoDB (mongo.uri или MONGODB_URI)")
	}
	return nil
}

// GetAddr возвращает адрес Redis (config -> env REDIS_ADDR).
// Пустая строка означает, что кеш отключен.
func (r *RedisConfig) GetAddr() string {
	if r.Addr != "" {
		return r.Addr
	}
	return os.Getenv("REDIS_ADDR")
}

// GetTTL возвращает TTL записей кеша.
func (r *RedisConfig) GetTTL() time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return 5 * time.Second
}

// GetURL возвращает адрес NATS (config -> env NATS_URL -> localhost).
func (n *NatsConfig) GetURL() string {
	if n.URL != "" {
		return n.URL
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return "nats://127.0.0.1:4222"
}

func seconds(v, def int) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return time.Duration(def) * time.Second
}

// Тайминги обслуживающего цикла (см. maintenance loop).

func (g *GameConfig) Tick() time.Duration         { return seconds(g.TickSeconds, 30) }
func (g *GameConfig) Backoff() time.Duration      { return seconds(g.BackoffSeconds, 10) }
func (g *GameConfig) IdleTimeout() time.Duration  { return seconds(g.IdleTimeoutSeconds, 60) }
func (g *GameConfig) CleanupGrace() time.Duration { return seconds(g.CleanupGraceSeconds, 300) }
func (g *GameConfig) WeatherMin() time.Duration   { return seconds(g.WeatherMinSeconds, 120) }
func (g *GameConfig) WeatherMax() time.Duration   { return seconds(g.WeatherMaxSeconds, 300) }

// GetTreasureCount возвращает целевое число сокровищ в сессии.
func (g *GameConfig) GetTreasureCount() int {
	if g.TreasureCount > 0 {
		return g.TreasureCount
	}
	return 10
}

// GetHazardCount возвращает число препятствий в сессии.
func (g *GameConfig) GetHazardCount() int {
	if g.HazardCount > 0 {
		return g.HazardCount
	}
	return 5
}

// GetWorldSize возвращает сторону квадрата мира (центр в начале координат).
func (g *GameConfig) GetWorldSize() float64 {
	if g.WorldSize > 0 {
		return g.WorldSize
	}
	return 100
}

// GetLeaderboardSize возвращает размер рассылаемого топа очков.
func (g *GameConfig) GetLeaderboardSize() int {
	if g.LeaderboardSize > 0 {
		return g.LeaderboardSize
	}
	return 5
}

// GetSessionActiveWindow возвращает окно активности сессий для REST выборки.
func (g *GameConfig) GetSessionActiveWindow() time.Duration {
	if g.SessionActiveMinutes > 0 {
		return time.Duration(g.SessionActiveMinutes) * time.Minute
	}
	return 15 * time.Minute
}

// GetHighScoresLimitMax возвращает потолок параметра limit в REST API.
func (g *GameConfig) GetHighScoresLimitMax() int {
	if g.HighScoresLimitMax > 0 {
		return g.HighScoresLimitMax
	}
	return 100
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV OCEAN_CONFIG или возвращает
// пустой конфиг (все значения — дефолты из Get* методов).
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OCEAN_CONFIG")
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
