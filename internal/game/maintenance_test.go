package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/storage"
)

type maintenanceFixture struct {
	mt      *Maintenance
	store   *SessionStore
	gateway *broadcast.MemoryGateway
	repo    *storage.MemoryGameRepo
}

func newMaintenanceFixture(t *testing.T) *maintenanceFixture {
	t.Helper()
	cfg := &config.GameConfig{}
	store := NewSessionStore()
	gen := NewWorldGenerator(7, cfg)
	gateway := broadcast.NewMemoryGateway()
	repo := storage.NewMemoryGameRepo()
	presence := NewPresenceManager(store, gen, gateway, repo, repo, cfg, nil)
	mt := NewMaintenance(store, gen, gateway, presence, cfg)
	return &maintenanceFixture{mt: mt, store: store, gateway: gateway, repo: repo}
}

func TestMaintenanceWeatherRotation(t *testing.T) {
	f := newMaintenanceFixture(t)
	t0 := time.Now()

	// testWorld ставит интервал смены погоды 2 минуты
	f.store.Join(joinReq("p1", "c1", "sea"), t0, testWorld(10))
	before, _ := f.store.SessionSnapshot("sea")

	// До истечения интервала погода не меняется
	require.NoError(t, f.mt.tick(t0.Add(time.Minute)))
	assert.Empty(t, roomEvents(f.gateway, "sea", EventWeatherChanged))

	// Игрок активен, выселение не срабатывает
	tick := t0.Add(3 * time.Minute)
	f.store.UpdateTransform(TransformRequest{PlayerID: "p1", SessionID: "sea"}, tick)

	require.NoError(t, f.mt.tick(tick))
	f.mt.presence.Wait()

	changed := roomEvents(f.gateway, "sea", EventWeatherChanged)
	require.Len(t, changed, 1)
	payload := changed[0].Payload.(WeatherChangedPayload)
	assert.NotEqual(t, before.Weather, payload.Weather, "новая погода отличается от прежней")
	assert.Empty(t, changed[0].Exclude, "смену погоды видят все")

	after, _ := f.store.SessionSnapshot("sea")
	assert.Equal(t, payload.Weather, after.Weather)

	rec, ok := f.repo.Session("sea")
	require.True(t, ok, "агрегаты сессии сохранены после смены погоды")
	assert.Equal(t, string(payload.Weather), rec.Weather)

	assert.Empty(t, roomEvents(f.gateway, "sea", EventPlayerLeft))
}

func TestMaintenanceIdleEviction(t *testing.T) {
	f := newMaintenanceFixture(t)
	t0 := time.Now()
	f.store.Join(joinReq("p1", "c1", "sea"), t0, testWorld(10))
	f.store.Join(joinReq("p2", "c2", "sea"), t0, testWorld(10))

	// p2 подаёт признаки жизни, p1 молчит дольше таймаута (60с)
	tick := t0.Add(90 * time.Second)
	f.store.UpdateTransform(TransformRequest{PlayerID: "p2", SessionID: "sea"}, tick)

	require.NoError(t, f.mt.tick(tick))
	f.mt.presence.Wait()

	left := roomEvents(f.gateway, "sea", EventPlayerLeft)
	require.Len(t, left, 1, "выселение по таймауту анонсируется как player_left")
	assert.Equal(t, "p1", left[0].Payload.(PlayerLeftPayload).PlayerID)

	_, players := f.store.Counts()
	assert.Equal(t, 1, players)

	// Финальное состояние выселенного сохранено
	_, ok := f.repo.Player("p1")
	assert.True(t, ok)
}

func TestMaintenanceReap(t *testing.T) {
	f := newMaintenanceFixture(t)
	t0 := time.Now()
	f.store.Join(joinReq("p1", "c1", "sea"), t0, testWorld(10))
	f.store.DisconnectByConn("c1", t0)

	// Грейс-период (300с) ещё не истёк
	require.NoError(t, f.mt.tick(t0.Add(2*time.Minute)))
	sessions, _ := f.store.Counts()
	assert.Equal(t, 1, sessions, "пустая сессия живёт весь грейс-период")

	require.NoError(t, f.mt.tick(t0.Add(6*time.Minute)))
	f.mt.presence.Wait()
	sessions, _ = f.store.Counts()
	assert.Zero(t, sessions, "по истечении грейс-периода сессия удалена")
}

func TestMaintenanceStartStop(t *testing.T) {
	f := newMaintenanceFixture(t)

	f.mt.Start(context.Background())
	f.mt.Stop()
}
