package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/ocean-game/internal/game"
	"github.com/annel0/ocean-game/internal/logging"
)

const (
	// Субъект, в который пограничные узлы публикуют события клиентов.
	clientSubject = "ocean.client.events"

	// Очередь подписки: при нескольких экземплярах ядра каждое событие
	// обрабатывается ровно одним из них.
	queueGroup = "ocean-core"
)

// ClientEvent — конверт входящего события от пограничного узла.
// Data трактуется по имени события.
type ClientEvent struct {
	Event     string          `json:"event"`
	ConnID    string          `json:"conn_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NatsIngress принимает клиентские события из NATS и раздаёт их
// менеджеру присутствия. Обработка последовательная в рамках колбэка
// подписки; порядок событий одного соединения сохраняется.
type NatsIngress struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	presence *game.PresenceManager
	timeout  time.Duration

	received uint64
	failed   uint64
}

// NewNatsIngress создаёт приёмник поверх готового соединения.
func NewNatsIngress(conn *nats.Conn, presence *game.PresenceManager) *NatsIngress {
	return &NatsIngress{
		conn:     conn,
		presence: presence,
		timeout:  5 * time.Second,
	}
}

// Start подписывается на субъект клиентских событий.
func (in *NatsIngress) Start() error {
	sub, err := in.conn.QueueSubscribe(clientSubject, queueGroup, in.handle)
	if err != nil {
		return fmt.Errorf("подписка на %s: %w", clientSubject, err)
	}
	in.sub = sub
	logging.Info("📡 Приём клиентских событий: %s (очередь %s)", clientSubject, queueGroup)
	return nil
}

// Stop снимает подписку. Уже начатая обработка события завершается.
func (in *NatsIngress) Stop() error {
	if in.sub == nil {
		return nil
	}
	return in.sub.Unsubscribe()
}

// Metrics возвращает счётчики принятых и отброшенных событий.
func (in *NatsIngress) Metrics() (received, failed uint64) {
	return atomic.LoadUint64(&in.received), atomic.LoadUint64(&in.failed)
}

func (in *NatsIngress) handle(msg *nats.Msg) {
	atomic.AddUint64(&in.received, 1)

	var ev ClientEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		atomic.AddUint64(&in.failed, 1)
		logging.Warn("Нечитаемый конверт события: %v", err)
		return
	}
	if ev.ConnID == "" {
		atomic.AddUint64(&in.failed, 1)
		logging.Warn("Событие %s без conn_id, пропущено", ev.Event)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
	defer cancel()

	switch ev.Event {
	case game.EventJoinGame:
		var req game.JoinRequest
		if !in.decode(ev, &req) {
			return
		}
		req.ConnID = ev.ConnID
		in.presence.HandleJoin(ctx, req)

	case game.EventPlayerUpdate:
		var req game.TransformRequest
		if !in.decode(ev, &req) {
			return
		}
		in.presence.HandleTransform(ctx, req)

	case game.EventStatusUpdate:
		var req game.StatusRequest
		if !in.decode(ev, &req) {
			return
		}
		in.presence.HandleStatus(ctx, req)

	case game.EventTreasureCollected:
		var req game.TreasureRequest
		if !in.decode(ev, &req) {
			return
		}
		in.presence.HandleTreasure(ctx, req)

	case game.EventDisconnect:
		in.presence.HandleDisconnect(ctx, ev.ConnID)

	default:
		atomic.AddUint64(&in.failed, 1)
		logging.Warn("Неизвестное событие %q от %s", ev.Event, ev.ConnID)
	}
}

func (in *NatsIngress) decode(ev ClientEvent, dst any) bool {
	if err := json.Unmarshal(ev.Data, dst); err != nil {
		atomic.AddUint64(&in.failed, 1)
		logging.Warn("Событие %s: некорректные данные: %v", ev.Event, err)
		return false
	}
	return true
}
