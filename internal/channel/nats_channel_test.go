package channel

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/ocean-game/internal/broadcast"
	"github.com/annel0/ocean-game/internal/config"
	"github.com/annel0/ocean-game/internal/game"
	"github.com/annel0/ocean-game/internal/storage"
)

type ingressFixture struct {
	ingress  *NatsIngress
	presence *game.PresenceManager
	store    *game.SessionStore
	gateway  *broadcast.MemoryGateway
}

func newIngressFixture(t *testing.T) *ingressFixture {
	t.Helper()
	store := game.NewSessionStore()
	gen := game.NewWorldGenerator(1, &config.GameConfig{})
	gateway := broadcast.NewMemoryGateway()
	repo := storage.NewMemoryGameRepo()
	presence := game.NewPresenceManager(store, gen, gateway, repo, repo, &config.GameConfig{}, nil)
	return &ingressFixture{
		ingress:  NewNatsIngress(nil, presence),
		presence: presence,
		store:    store,
		gateway:  gateway,
	}
}

func envelope(t *testing.T, event, connID string, data interface{}) *nats.Msg {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(ClientEvent{Event: event, ConnID: connID, Data: raw})
	require.NoError(t, err)
	return &nats.Msg{Subject: clientSubject, Data: payload}
}

func TestIngressDispatch(t *testing.T) {
	f := newIngressFixture(t)

	f.ingress.handle(envelope(t, game.EventJoinGame, "conn1", map[string]string{
		"player_id": "p1", "player_name": "Шторм", "session_id": "sea",
	}))
	f.presence.Wait()

	require.Len(t, f.gateway.ConnMessages("conn1"), 1, "join доставлен менеджеру присутствия")
	_, players := f.store.Counts()
	assert.Equal(t, 1, players)

	f.ingress.handle(envelope(t, game.EventPlayerUpdate, "conn1", map[string]interface{}{
		"player_id": "p1", "session_id": "sea",
		"position": map[string]float64{"x": 4, "y": 0, "z": 2},
	}))
	moved := f.gateway.RoomMessages("sea")
	found := false
	for _, msg := range moved {
		if msg.Event == game.EventPlayerMoved {
			found = true
			assert.Equal(t, "conn1", msg.Exclude)
		}
	}
	assert.True(t, found, "player_update транслируется как player_moved")

	f.ingress.handle(envelope(t, game.EventDisconnect, "conn1", nil))
	f.presence.Wait()
	_, players = f.store.Counts()
	assert.Zero(t, players)

	received, failed := f.ingress.Metrics()
	assert.EqualValues(t, 3, received)
	assert.Zero(t, failed)
}

func TestIngressRejectsMalformed(t *testing.T) {
	f := newIngressFixture(t)

	t.Run("Нечитаемый конверт", func(t *testing.T) {
		f.ingress.handle(&nats.Msg{Data: []byte("не json")})
	})

	t.Run("Конверт без conn_id", func(t *testing.T) {
		f.ingress.handle(envelope(t, game.EventJoinGame, "", nil))
	})

	t.Run("Неизвестное событие", func(t *testing.T) {
		f.ingress.handle(envelope(t, "телепортация", "conn1", nil))
	})

	t.Run("Некорректные данные события", func(t *testing.T) {
		payload, _ := json.Marshal(ClientEvent{
			Event: game.EventJoinGame, ConnID: "conn1",
			Data: json.RawMessage(`"строка вместо объекта"`),
		})
		f.ingress.handle(&nats.Msg{Data: payload})
	})

	f.presence.Wait()

	sessions, players := f.store.Counts()
	assert.Zero(t, sessions)
	assert.Zero(t, players)

	received, failed := f.ingress.Metrics()
	assert.EqualValues(t, 4, received)
	assert.EqualValues(t, 4, failed)
}
