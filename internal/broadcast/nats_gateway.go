package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/ocean-game/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// Субъекты канала. Edge-слой (websocket шлюз) подписывается на
// ocean.session.<id> для своих комнат и на ocean.conn.<id> для адресных
// сообщений; фильтрацию exclude выполняет на своей стороне.
const (
	roomSubjectPrefix = "ocean.session."
	connSubjectPrefix = "ocean.conn."
)

// Envelope — контейнер исходящего события на проводе.
type Envelope struct {
	Event     string          `json:"event"`
	Exclude   string          `json:"exclude,omitempty"` // conn id отправителя
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NatsGateway реализует Gateway поверх NATS Pub/Sub.
type NatsGateway struct {
	nc        *nats.Conn
	published uint64
	errors    uint64
}

// NewNatsGateway оборачивает существующее NATS соединение.
func NewNatsGateway(nc *nats.Conn) *NatsGateway {
	return &NatsGateway{nc: nc}
}

// Connect подключается к NATS с автоматическим переподключением
// и возвращает готовый шлюз.
func Connect(url string) (*NatsGateway, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("NATS соединение потеряно: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS переподключение: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNatsGateway(nc), nil
}

// Conn возвращает нижележащее соединение для входящего канала.
func (g *NatsGateway) Conn() *nats.Conn {
	return g.nc
}

// Room публикует событие в субъект комнаты сессии.
func (g *NatsGateway) Room(ctx context.Context, sessionID, event string, payload interface{}, exclude string) error {
	return g.publish(ctx, roomSubjectPrefix+sessionID, event, payload, exclude)
}

// Direct публикует событие в субъект конкретного соединения.
func (g *NatsGateway) Direct(ctx context.Context, connID, event string, payload interface{}) error {
	return g.publish(ctx, connSubjectPrefix+connID, event, payload, "")
}

func (g *NatsGateway) publish(ctx context.Context, subject, event string, payload interface{}, exclude string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		atomic.AddUint64(&g.errors, 1)
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	env := Envelope{
		Event:     event,
		Exclude:   exclude,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(&env)
	if err != nil {
		atomic.AddUint64(&g.errors, 1)
		return err
	}

	if err := g.nc.Publish(subject, raw); err != nil {
		atomic.AddUint64(&g.errors, 1)
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	atomic.AddUint64(&g.published, 1)
	return nil
}

// Metrics возвращает текущие метрики шлюза.
func (g *NatsGateway) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&g.published),
		Errors:    atomic.LoadUint64(&g.errors),
	}
}

// Close дожидается отправки буферизованных сообщений и закрывает соединение.
func (g *NatsGateway) Close() {
	if g.nc != nil && !g.nc.IsClosed() {
		_ = g.nc.Drain()
	}
}
