package game

import (
	"testing"
	"time"

	"github.com/annel0/ocean-game/internal/config"
)

func newTestGenerator(seed int64) *WorldGenerator {
	return NewWorldGenerator(seed, &config.GameConfig{})
}

func TestInitializeSession(t *testing.T) {
	gen := newTestGenerator(42)
	weather, treasures, hazards, interval := gen.InitializeSession()

	t.Run("Погода из допустимого набора", func(t *testing.T) {
		found := false
		for _, w := range AllWeathers {
			if w == weather {
				found = true
			}
		}
		if !found {
			t.Errorf("Неизвестная погода: %s", weather)
		}
	})

	t.Run("Полный набор сокровищ и препятствий", func(t *testing.T) {
		if len(treasures) != 10 {
			t.Errorf("Ожидалось 10 сокровищ, получено %d", len(treasures))
		}
		if len(hazards) != 5 {
			t.Errorf("Ожидалось 5 препятствий, получено %d", len(hazards))
		}
	})

	t.Run("Интервал смены погоды в настроенной полосе", func(t *testing.T) {
		if interval < 2*time.Minute || interval >= 5*time.Minute {
			t.Errorf("Интервал %s вне полосы [2m, 5m)", interval)
		}
	})

	t.Run("Сокровища на воде, в границах мира, с верной стоимостью", func(t *testing.T) {
		for _, tr := range treasures {
			if tr.ID == "" {
				t.Error("Сокровище без идентификатора")
			}
			if tr.Position.Y != 0 {
				t.Errorf("Сокровище не на воде: y=%f", tr.Position.Y)
			}
			if tr.Position.X < -50 || tr.Position.X > 50 || tr.Position.Z < -50 || tr.Position.Z > 50 {
				t.Errorf("Сокровище вне мира: %+v", tr.Position)
			}
			if tr.Value != tr.Type.Value() {
				t.Errorf("Стоимость %s: %d, ожидалось %d", tr.Type, tr.Value, tr.Type.Value())
			}
		}
	})

	t.Run("Параметры препятствий в допустимых диапазонах", func(t *testing.T) {
		for _, h := range hazards {
			if h.Type != HazardRock && h.Type != HazardWhirlpool {
				t.Errorf("Неизвестный тип препятствия: %s", h.Type)
			}
			if h.Radius < 2 || h.Radius >= 5 {
				t.Errorf("Радиус %f вне [2, 5)", h.Radius)
			}
			if h.Damage < 10 || h.Damage >= 30 {
				t.Errorf("Урон %d вне [10, 30)", h.Damage)
			}
		}
	})
}

func TestTreasureTypeValues(t *testing.T) {
	cases := map[TreasureType]int{
		TreasureGold:  10,
		TreasureGem:   25,
		TreasureChest: 50,
	}
	for tt, want := range cases {
		if got := tt.Value(); got != want {
			t.Errorf("%s: %d, ожидалось %d", tt, got, want)
		}
	}
	if got := TreasureType("жемчуг").Value(); got != 0 {
		t.Errorf("Неизвестный тип должен стоить 0, получено %d", got)
	}
}

// Смена погоды никогда не возвращает текущее значение.
func TestNextWeatherNeverRepeats(t *testing.T) {
	gen := newTestGenerator(7)
	current := WeatherCalm
	for i := 0; i < 200; i++ {
		next, interval := gen.NextWeather(current)
		if next == current {
			t.Fatalf("Итерация %d: погода не сменилась (%s)", i, next)
		}
		if interval < 2*time.Minute || interval >= 5*time.Minute {
			t.Fatalf("Интервал %s вне полосы [2m, 5m)", interval)
		}
		current = next
	}
}

func TestNewTreasureUniqueIDs(t *testing.T) {
	gen := newTestGenerator(1)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tr := gen.NewTreasure()
		if _, dup := seen[tr.ID]; dup {
			t.Fatalf("Повторяющийся идентификатор сокровища: %s", tr.ID)
		}
		seen[tr.ID] = struct{}{}
	}
}

// Один сид — одинаковый мир: генератор детерминирован.
func TestGeneratorDeterminism(t *testing.T) {
	a := newTestGenerator(99)
	b := newTestGenerator(99)

	wa, ta, ha, ia := a.InitializeSession()
	wb, tb, hb, ib := b.InitializeSession()

	if wa != wb || ia != ib || len(ta) != len(tb) || len(ha) != len(hb) {
		t.Fatal("Генераторы с одним сидом разошлись")
	}
	for i := range ta {
		if ta[i].Type != tb[i].Type || !ta[i].Position.Equals(tb[i].Position) {
			t.Fatalf("Сокровище %d различается", i)
		}
	}
}
