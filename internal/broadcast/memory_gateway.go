package broadcast

import (
	"context"
	"sync"
	"time"
)

// Message — доставленное событие, сохранённое in-memory шлюзом.
type Message struct {
	Event     string
	Payload   interface{}
	Exclude   string
	Timestamp time.Time
}

// MemoryGateway реализует Gateway в памяти.
// Используется в тестах и для локальной разработки без NATS:
// сообщения накапливаются и доступны для инспекции.
type MemoryGateway struct {
	mu    sync.RWMutex
	rooms map[string][]Message // sessionID -> события комнаты
	conns map[string][]Message // connID -> адресные события
}

// NewMemoryGateway создает новый in-memory шлюз.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		rooms: make(map[string][]Message),
		conns: make(map[string][]Message),
	}
}

// Room записывает событие комнаты.
func (g *MemoryGateway) Room(ctx context.Context, sessionID, event string, payload interface{}, exclude string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[sessionID] = append(g.rooms[sessionID], Message{
		Event:     event,
		Payload:   payload,
		Exclude:   exclude,
		Timestamp: time.Now(),
	})
	return nil
}

// Direct записывает адресное событие.
func (g *MemoryGateway) Direct(ctx context.Context, connID, event string, payload interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[connID] = append(g.conns[connID], Message{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	return nil
}

// Close освобождает ресурсы (для in-memory шлюза — no-op).
func (g *MemoryGateway) Close() {}

// RoomMessages возвращает копию событий комнаты.
func (g *MemoryGateway) RoomMessages(sessionID string) []Message {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Message(nil), g.rooms[sessionID]...)
}

// ConnMessages возвращает копию адресных событий соединения.
func (g *MemoryGateway) ConnMessages(connID string) []Message {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Message(nil), g.conns[connID]...)
}

// Reset очищает накопленные события (для тестов).
func (g *MemoryGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms = make(map[string][]Message)
	g.conns = make(map[string][]Message)
}
