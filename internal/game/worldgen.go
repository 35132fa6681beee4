package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/vec"
)

// WorldGenerator генерирует начальное состояние сессии и пополняет его:
// погоду, сокровища и препятствия. Чистые функции над источником
// случайности; сид задаётся извне для детерминированности в тестах.
type WorldGenerator struct {
	mu  sync.Mutex // rand.Rand не потокобезопасен
	rng *rand.Rand
	cfg *config.GameConfig
}

// NewWorldGenerator создаёт генератор мира с указанным сидом.
func NewWorldGenerator(seed int64, cfg *config.GameConfig) *WorldGenerator {
	return &WorldGenerator{
		rng: rand.New(rand.NewSource(seed)),
		cfg: cfg,
	}
}

// InitializeSession выбирает погоду и генерирует полный набор сокровищ
// и препятствий для новой сессии. Возвращает также интервал до первой
// смены погоды.
func (g *WorldGenerator) InitializeSession() (Weather, []Treasure, []Hazard, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	weather := AllWeathers[g.rng.Intn(len(AllWeathers))]

	treasures := make([]Treasure, 0, g.cfg.GetTreasureCount())
	for i := 0; i < g.cfg.GetTreasureCount(); i++ {
		treasures = append(treasures, g.newTreasureLocked())
	}

	hazards := make([]Hazard, 0, g.cfg.GetHazardCount())
	for i := 0; i < g.cfg.GetHazardCount(); i++ {
		hazards = append(hazards, g.newHazardLocked())
	}

	return weather, treasures, hazards, g.weatherIntervalLocked()
}

// NewTreasure генерирует одно сокровище на замену собранному.
func (g *WorldGenerator) NewTreasure() Treasure {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.newTreasureLocked()
}

// NextWeather выбирает погоду, отличную от текущей, и новый интервал
// до следующей смены. Перевыбор продолжается, пока значение не отличится.
func (g *WorldGenerator) NextWeather(current Weather) (Weather, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := current
	for next == current {
		next = AllWeathers[g.rng.Intn(len(AllWeathers))]
	}
	return next, g.weatherIntervalLocked()
}

func (g *WorldGenerator) newTreasureLocked() Treasure {
	t := AllTreasureTypes[g.rng.Intn(len(AllTreasureTypes))]
	return Treasure{
		ID:       NewID(),
		Type:     t,
		Position: g.randomPositionLocked(),
		Value:    t.Value(),
	}
}

func (g *WorldGenerator) newHazardLocked() Hazard {
	hazardType := HazardWhirlpool
	if g.rng.Float64() > 0.5 {
		hazardType = HazardRock
	}
	return Hazard{
		ID:       NewID(),
		Type:     hazardType,
		Position: g.randomPositionLocked(),
		Radius:   2 + g.rng.Float64()*3,
		Damage:   10 + g.rng.Intn(20),
	}
}

// randomPositionLocked возвращает точку на воде (y=0) в квадрате мира,
// центрированном в начале координат.
func (g *WorldGenerator) randomPositionLocked() vec.Vec3 {
	size := g.cfg.GetWorldSize()
	return vec.Vec3{
		X: (g.rng.Float64() - 0.5) * size,
		Y: 0,
		Z: (g.rng.Float64() - 0.5) * size,
	}
}

// weatherIntervalLocked выбирает порог смены погоды из настроенной полосы.
func (g *WorldGenerator) weatherIntervalLocked() time.Duration {
	min := g.cfg.WeatherMin()
	max := g.cfg.WeatherMax()
	if max <= min {
		return min
	}
	return min + time.Duration(g.rng.Int63n(int64(max-min)))
}
