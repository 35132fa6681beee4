package broadcast

import "context"

// Gateway определяет абстракцию транспортного канала с семантикой комнат.
// Ядро игры не знает, как события доставляются клиентам; оно лишь просит
// разослать событие комнате или конкретному соединению.
// Реализации: NATS (продакшен), in-memory (тесты и разработка).
type Gateway interface {
	// Room доставляет событие всем участникам комнаты сессии.
	// exclude — идентификатор соединения отправителя, которому событие
	// не доставляется; пустая строка означает "всем".
	Room(ctx context.Context, sessionID, event string, payload interface{}, exclude string) error

	// Direct доставляет событие одному соединению.
	Direct(ctx context.Context, connID, event string, payload interface{}) error

	// Close освобождает ресурсы канала.
	Close()
}

// Stats агрегированные метрики шлюза.
type Stats struct {
	Published uint64
	Errors    uint64
}
