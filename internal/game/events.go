package game

import (
	"github.com/annel0/ocean-game/internal/storage"
	"github.com/annel0/ocean-game/internal/vec"
)

// Имена входящих событий клиентского протокола.
const (
	EventJoinGame          = "join_game"
	EventPlayerUpdate      = "player_update"
	EventStatusUpdate      = "status_update"
	EventTreasureCollected = "treasure_collected"
	EventDisconnect        = "disconnect"
)

// Имена исходящих событий. Совпадают с именами на проводе,
// которые ожидает клиент.
const (
	EventGameState      = "game_state"
	EventPlayerJoined   = "player_joined"
	EventPlayerMoved    = "player_moved"
	EventPlayerLeft     = "player_left"
	EventWeatherChanged = "weather_changed"
	EventTreasureUpdate = "treasure_update"
	EventHighScores     = "high_scores"
)

// GameStatePayload — полный снимок мира и состава сессии.
// Отправляется только подключающемуся соединению.
type GameStatePayload struct {
	SessionID string           `json:"session_id"`
	PlayerID  string           `json:"player_id"`
	Weather   Weather          `json:"weather"`
	Treasures []Treasure       `json:"treasures"`
	Hazards   []Hazard         `json:"hazards"`
	Players   []PlayerSnapshot `json:"players"`
}

// PlayerJoinedPayload рассылается комнате без отправителя.
type PlayerJoinedPayload struct {
	PlayerID string   `json:"player_id"`
	Name     string   `json:"name"`
	Position vec.Vec3 `json:"position"`
	Rotation vec.Vec3 `json:"rotation"`
}

// PlayerMovedPayload рассылается комнате без отправителя.
type PlayerMovedPayload struct {
	PlayerID string   `json:"player_id"`
	Position vec.Vec3 `json:"position"`
	Rotation vec.Vec3 `json:"rotation"`
	Velocity vec.Vec3 `json:"velocity"`
}

// PlayerLeftPayload рассылается всей комнате.
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// WeatherChangedPayload рассылается всей комнате.
type WeatherChangedPayload struct {
	Weather Weather `json:"weather"`
}

// TreasureUpdatePayload описывает атомарную замену собранного сокровища.
type TreasureUpdatePayload struct {
	Removed []string   `json:"removed"`
	Added   []Treasure `json:"added"`
}

// HighScoresPayload — текущий топ очков сессии из долговременного
// хранилища (учитывает и уже вышедших игроков).
type HighScoresPayload struct {
	Scores []storage.ScoreEntry `json:"scores"`
}

// Входящие события (протокол клиента, §присутствие).

// JoinRequest — запрос на вход в сессию. PlayerID пустой для новых
// игроков; повторное использование id означает переподключение.
type JoinRequest struct {
	PlayerID  string   `json:"player_id"`
	Name      string   `json:"player_name"`
	SessionID string   `json:"session_id"`
	ConnID    string   `json:"-"`
	Position  vec.Vec3 `json:"position"`
	Rotation  vec.Vec3 `json:"rotation"`
	Velocity  vec.Vec3 `json:"velocity"`
}

// TransformRequest — высокочастотное обновление позиции.
type TransformRequest struct {
	PlayerID  string   `json:"player_id"`
	SessionID string   `json:"session_id"`
	Position  vec.Vec3 `json:"position"`
	Rotation  vec.Vec3 `json:"rotation"`
	Velocity  vec.Vec3 `json:"velocity"`
}

// StatusRequest — обновление очков и повреждений корабля.
type StatusRequest struct {
	PlayerID   string `json:"player_id"`
	SessionID  string `json:"session_id"`
	Score      int    `json:"score"`
	ShipDamage int    `json:"ship_damage"`
}

// TreasureRequest — заявка на сбор сокровища.
type TreasureRequest struct {
	PlayerID   string `json:"player_id"`
	SessionID  string `json:"session_id"`
	TreasureID string `json:"treasure_id"`
}
