package broadcast

import (
	"context"
	"testing"
)

func TestMemoryGateway(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()

	t.Run("Комнатные и адресные события разделены", func(t *testing.T) {
		if err := gw.Room(ctx, "sea", "player_joined", "payload", "conn1"); err != nil {
			t.Fatalf("Room: %v", err)
		}
		if err := gw.Direct(ctx, "conn1", "game_state", "state"); err != nil {
			t.Fatalf("Direct: %v", err)
		}

		room := gw.RoomMessages("sea")
		if len(room) != 1 || room[0].Event != "player_joined" || room[0].Exclude != "conn1" {
			t.Errorf("Неверное комнатное событие: %+v", room)
		}
		conn := gw.ConnMessages("conn1")
		if len(conn) != 1 || conn[0].Event != "game_state" {
			t.Errorf("Неверное адресное событие: %+v", conn)
		}
		if len(gw.RoomMessages("lagoon")) != 0 {
			t.Error("Чужая комната получила событие")
		}
	})

	t.Run("Возвращаются копии", func(t *testing.T) {
		msgs := gw.RoomMessages("sea")
		msgs[0].Event = "подмена"
		if gw.RoomMessages("sea")[0].Event != "player_joined" {
			t.Error("Внутреннее состояние изменено снаружи")
		}
	})

	t.Run("Отменённый контекст прерывает отправку", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := gw.Room(cancelled, "sea", "x", nil, ""); err == nil {
			t.Error("Ожидалась ошибка контекста")
		}
	})

	t.Run("Reset очищает накопленное", func(t *testing.T) {
		gw.Reset()
		if len(gw.RoomMessages("sea")) != 0 || len(gw.ConnMessages("conn1")) != 0 {
			t.Error("Reset не очистил события")
		}
	})
}
