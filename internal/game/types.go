package game

import (
	"sync"
	"time"

	"github.com/annel0/ocean-game/internal/vec"
	"github.com/google/uuid"
)

// Weather представляет погоду в сессии
type Weather string

const (
	WeatherCalm   Weather = "calm"
	WeatherWindy  Weather = "windy"
	WeatherFoggy  Weather = "foggy"
	WeatherStormy Weather = "stormy"
)

// AllWeathers список всех возможных значений погоды
var AllWeathers = []Weather{WeatherCalm, WeatherWindy, WeatherFoggy, WeatherStormy}

// TreasureType представляет тип сокровища
type TreasureType string

const (
	TreasureGold  TreasureType = "gold"
	TreasureGem   TreasureType = "gem"
	TreasureChest TreasureType = "chest"
)

// AllTreasureTypes список всех типов сокровищ
var AllTreasureTypes = []TreasureType{TreasureGold, TreasureGem, TreasureChest}

// Value возвращает стоимость сокровища данного типа в очках
func (t TreasureType) Value() int {
	switch t {
	case TreasureGold:
		return 10
	case TreasureGem:
		return 25
	case TreasureChest:
		return 50
	default:
		return 0
	}
}

// Treasure — собираемое сокровище. Уничтожается при сборе и немедленно
// заменяется новым, поэтому число сокровищ в сессии постоянно.
type Treasure struct {
	ID       string       `json:"id"`
	Type     TreasureType `json:"type"`
	Position vec.Vec3     `json:"position"`
	Value    int          `json:"value"`
}

// HazardType представляет тип препятствия
type HazardType string

const (
	HazardRock      HazardType = "rock"
	HazardWhirlpool HazardType = "whirlpool"
)

// Hazard — статическое препятствие, генерируется один раз при создании
// сессии и не меняется в течение её жизни.
type Hazard struct {
	ID       string     `json:"id"`
	Type     HazardType `json:"type"`
	Position vec.Vec3   `json:"position"`
	Radius   float64    `json:"radius"`
	Damage   int        `json:"damage"`
}

// Session — игровая комната со своим состоянием мира и составом игроков.
// Все изменяемые поля защищены mu; блокировка берётся только кодом
// SessionStore (см. store.go), наружу сессия не отдаётся.
type Session struct {
	mu sync.RWMutex

	id      string
	members map[string]struct{} // множество id игроков в сессии

	weather           Weather
	lastWeatherChange time.Time
	weatherInterval   time.Duration // порог смены погоды, перевыбирается при каждой смене

	treasures []Treasure
	hazards   []Hazard

	createdAt       time.Time
	pendingCleanup  bool
	cleanupMarkedAt time.Time
}

// Player — подключённый игрок. Принадлежит ровно одной сессии;
// изменяемые поля защищены мьютексом его сессии.
type Player struct {
	id        string
	sessionID string
	connID    string // идентификатор транспортного соединения
	name      string

	position vec.Vec3
	rotation vec.Vec3 // значимая компонента — Y (рыскание)
	velocity vec.Vec3

	score      int
	shipDamage int

	lastUpdate time.Time
}

// PlayerSnapshot — копия состояния игрока, безопасная для передачи наружу.
type PlayerSnapshot struct {
	ID         string   `json:"playerId"`
	Name       string   `json:"name"`
	SessionID  string   `json:"-"`
	ConnID     string   `json:"-"`
	Position   vec.Vec3 `json:"position"`
	Rotation   vec.Vec3 `json:"rotation"`
	Velocity   vec.Vec3 `json:"velocity"`
	Score      int      `json:"score"`
	ShipDamage int      `json:"-"`
}

// SessionSnapshot — копия агрегатов сессии для персистентности и метрик.
type SessionSnapshot struct {
	SessionID     string
	Weather       Weather
	TreasureCount int
	HazardCount   int
	PlayerCount   int
}

// NewID генерирует глобально уникальный идентификатор
// для игроков и игровых объектов.
func NewID() string {
	return uuid.NewString()
}

func (p *Player) snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:         p.id,
		Name:       p.name,
		SessionID:  p.sessionID,
		ConnID:     p.connID,
		Position:   p.position,
		Rotation:   p.rotation,
		Velocity:   p.velocity,
		Score:      p.score,
		ShipDamage: p.shipDamage,
	}
}

// snapshotLocked собирает агрегаты; вызывается под s.mu.
func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		SessionID:     s.id,
		Weather:       s.weather,
		TreasureCount: len(s.treasures),
		HazardCount:   len(s.hazards),
		PlayerCount:   len(s.members),
	}
}
