package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/storage"
	"github.com/annel0/ocean-game/internal/vec"
)

type presenceFixture struct {
	presence *PresenceManager
	store    *SessionStore
	gateway  *broadcast.MemoryGateway
	repo     *storage.MemoryGameRepo
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	store := NewSessionStore()
	gen := NewWorldGenerator(42, &config.GameConfig{})
	gateway := broadcast.NewMemoryGateway()
	repo := storage.NewMemoryGameRepo()
	presence := NewPresenceManager(store, gen, gateway, repo, repo, &config.GameConfig{}, nil)
	return &presenceFixture{presence: presence, store: store, gateway: gateway, repo: repo}
}

func roomEvents(gw *broadcast.MemoryGateway, sessionID, event string) []broadcast.Message {
	var out []broadcast.Message
	for _, msg := range gw.RoomMessages(sessionID) {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

func TestPresenceJoinFlow(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	// Игрок A: пустые поля получают значения по умолчанию
	f.presence.HandleJoin(ctx, JoinRequest{ConnID: "connA"})
	f.presence.Wait()

	direct := f.gateway.ConnMessages("connA")
	require.Len(t, direct, 1, "подключившийся получает ровно одно адресное событие")
	require.Equal(t, EventGameState, direct[0].Event)

	state, ok := direct[0].Payload.(GameStatePayload)
	require.True(t, ok)
	assert.Equal(t, "default", state.SessionID)
	assert.NotEmpty(t, state.PlayerID, "новому игроку выдан идентификатор")
	assert.Len(t, state.Treasures, 10)
	assert.Len(t, state.Hazards, 5)
	assert.Len(t, state.Players, 1)

	// Анонс комнате исключает самого подключившегося
	joined := roomEvents(f.gateway, "default", EventPlayerJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "connA", joined[0].Exclude)

	// Запись в хранилище с дефолтами протокола
	rec, ok := f.repo.Player(state.PlayerID)
	require.True(t, ok, "игрок сохранён в долговременном хранилище")
	assert.Equal(t, "Anonymous", rec.Name)
	assert.Equal(t, "default", rec.SessionID)

	// Дефолтная точка появления
	assert.Equal(t, vec.Vec3{X: 0, Y: 0.5, Z: 0}, state.Players[0].Position)

	// Игрок B видит A в составе, но не получает чужой game_state
	f.presence.HandleJoin(ctx, JoinRequest{
		PlayerID: "B", Name: "Борт", SessionID: "default", ConnID: "connB",
		Position: vec.Vec3{X: 3, Y: 0.5, Z: 4},
	})
	f.presence.Wait()

	directB := f.gateway.ConnMessages("connB")
	require.Len(t, directB, 1)
	stateB := directB[0].Payload.(GameStatePayload)
	assert.Len(t, stateB.Players, 2)

	assert.Len(t, f.gateway.ConnMessages("connA"), 1, "game_state адресуется только подключающемуся")

	joined = roomEvents(f.gateway, "default", EventPlayerJoined)
	require.Len(t, joined, 2)
	assert.Equal(t, "connB", joined[1].Exclude)
}

func TestPresenceJoinWithoutConn(t *testing.T) {
	f := newPresenceFixture(t)

	f.presence.HandleJoin(context.Background(), JoinRequest{PlayerID: "X"})
	f.presence.Wait()

	sessions, players := f.store.Counts()
	assert.Zero(t, sessions)
	assert.Zero(t, players)
}

func TestPresenceTransform(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	f.presence.HandleJoin(ctx, JoinRequest{PlayerID: "A", SessionID: "sea", ConnID: "connA"})

	f.presence.HandleTransform(ctx, TransformRequest{
		PlayerID: "A", SessionID: "sea",
		Position: vec.Vec3{X: 7, Z: -2}, Velocity: vec.Vec3{X: 1},
	})

	moved := roomEvents(f.gateway, "sea", EventPlayerMoved)
	require.Len(t, moved, 1)
	assert.Equal(t, "connA", moved[0].Exclude, "отправитель исключён из рассылки движения")

	payload := moved[0].Payload.(PlayerMovedPayload)
	assert.Equal(t, 7.0, payload.Position.X)

	// Неизвестные ссылки — тихий no-op без рассылки
	f.presence.HandleTransform(ctx, TransformRequest{PlayerID: "нет", SessionID: "sea"})
	assert.Len(t, roomEvents(f.gateway, "sea", EventPlayerMoved), 1)
	f.presence.Wait()
}

func TestPresenceStatus(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	f.presence.HandleJoin(ctx, JoinRequest{PlayerID: "A", Name: "Аврора", SessionID: "sea", ConnID: "connA"})
	f.presence.Wait()

	f.presence.HandleStatus(ctx, StatusRequest{
		PlayerID: "A", SessionID: "sea", Score: 35, ShipDamage: 20,
	})
	f.presence.Wait()

	rec, ok := f.repo.Player("A")
	require.True(t, ok)
	assert.Equal(t, 35, rec.Score)
	assert.Equal(t, 20, rec.ShipDamage)

	// Смена очков влечёт рассылку таблицы лидеров всей комнате
	scores := roomEvents(f.gateway, "sea", EventHighScores)
	require.NotEmpty(t, scores)
	// Топ читается конкурентно с записью статуса, поэтому проверяем
	// только состав, не значение очков (eventual consistency)
	payload := scores[len(scores)-1].Payload.(HighScoresPayload)
	require.NotEmpty(t, payload.Scores)
	assert.Equal(t, "A", payload.Scores[0].PlayerID)
	assert.Empty(t, scores[len(scores)-1].Exclude)
}

func TestPresenceTreasure(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	f.presence.HandleJoin(ctx, JoinRequest{PlayerID: "A", SessionID: "sea", ConnID: "connA"})
	f.presence.Wait()

	state := f.gateway.ConnMessages("connA")[0].Payload.(GameStatePayload)
	target := state.Treasures[2]

	f.presence.HandleTreasure(ctx, TreasureRequest{
		PlayerID: "A", SessionID: "sea", TreasureID: target.ID,
	})
	f.presence.Wait()

	updates := roomEvents(f.gateway, "sea", EventTreasureUpdate)
	require.Len(t, updates, 1)
	assert.Empty(t, updates[0].Exclude, "замену сокровища видят все, включая сборщика")

	payload := updates[0].Payload.(TreasureUpdatePayload)
	require.Len(t, payload.Removed, 1)
	require.Len(t, payload.Added, 1)
	assert.Equal(t, target.ID, payload.Removed[0])
	assert.NotEqual(t, target.ID, payload.Added[0].ID)

	snap, ok := f.store.PlayerSnapshotByID("A")
	require.True(t, ok)
	assert.Equal(t, target.Value, snap.Score)

	rec, _ := f.repo.Player("A")
	assert.Equal(t, target.Value, rec.Score, "очки сохранены в хранилище")

	require.NotEmpty(t, roomEvents(f.gateway, "sea", EventHighScores))

	// Повторная заявка на то же сокровище игнорируется
	f.presence.HandleTreasure(ctx, TreasureRequest{
		PlayerID: "A", SessionID: "sea", TreasureID: target.ID,
	})
	f.presence.Wait()
	assert.Len(t, roomEvents(f.gateway, "sea", EventTreasureUpdate), 1)
}

func TestPresenceDisconnect(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	f.presence.HandleJoin(ctx, JoinRequest{PlayerID: "A", SessionID: "sea", ConnID: "connA"})
	f.presence.HandleStatus(ctx, StatusRequest{PlayerID: "A", SessionID: "sea", Score: 50})
	f.presence.Wait()

	f.presence.HandleDisconnect(ctx, "connA")
	f.presence.Wait()

	left := roomEvents(f.gateway, "sea", EventPlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "A", left[0].Payload.(PlayerLeftPayload).PlayerID)

	pending, ok := f.store.SessionPendingCleanup("sea")
	require.True(t, ok, "сессия переживает отключение последнего игрока")
	assert.True(t, pending)

	// Финальные очки доступны после выхода
	rec, ok := f.repo.Player("A")
	require.True(t, ok)
	assert.Equal(t, 50, rec.Score)

	// Повторный разрыв того же соединения — no-op
	f.presence.HandleDisconnect(ctx, "connA")
	f.presence.Wait()
	assert.Len(t, roomEvents(f.gateway, "sea", EventPlayerLeft), 1)
}
