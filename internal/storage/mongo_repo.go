package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the game database.
type MongoConfig struct {
	URI      string // e.g. mongodb://localhost:27017
	Database string // e.g. oceanGame
	Players  string // e.g. players
	Sessions string // e.g. game_sessions
}

// MongoGameRepo implements PlayerRepo and SessionRepo on MongoDB.
type MongoGameRepo struct {
	client     *mongo.Client
	players    *mongo.Collection
	sessions   *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongoGameRepo establishes connection and returns repository.
func NewMongoGameRepo(cfg MongoConfig) (*MongoGameRepo, error) {
	if cfg.Database == "" {
		cfg.Database = "oceanGame"
	}
	if cfg.Players == "" {
		cfg.Players = "players"
	}
	if cfg.Sessions == "" {
		cfg.Sessions = "game_sessions"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database)
	repo := &MongoGameRepo{
		client:     client,
		players:    db.Collection(cfg.Players),
		sessions:   db.Collection(cfg.Sessions),
		ctxTimeout: 5 * time.Second,
	}

	// Ensure indexes
	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoGameRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	playerIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "player_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("playerid_unique"),
		},
		{
			// выборка таблицы лидеров по сессии
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "score", Value: -1}},
			Options: options.Index().SetName("session_score"),
		},
	}
	if _, err := m.players.Indexes().CreateMany(ctx, playerIdx); err != nil {
		return err
	}

	sessionIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("sessionid_unique"),
		},
		{
			// окно "активных" сессий для REST выборки
			Keys:    bson.D{{Key: "last_updated", Value: -1}},
			Options: options.Index().SetName("last_updated"),
		},
	}
	_, err := m.sessions.Indexes().CreateMany(ctx, sessionIdx)
	return err
}

// UpsertPlayer implements PlayerRepo.
func (m *MongoGameRepo) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.players.UpdateOne(ctx,
		bson.M{"player_id": rec.PlayerID},
		bson.M{"$set": bson.M{
			"name":        rec.Name,
			"session_id":  rec.SessionID,
			"last_active": rec.LastActive,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// UpdateStatus implements PlayerRepo.
func (m *MongoGameRepo) UpdateStatus(ctx context.Context, rec PlayerRecord) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.players.UpdateOne(ctx,
		bson.M{"player_id": rec.PlayerID},
		bson.M{"$set": bson.M{
			"score":        rec.Score,
			"position":     rec.Position,
			"rotation":     rec.Rotation,
			"ship_damage":  rec.ShipDamage,
			"last_updated": rec.LastUpdated,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// PlayersBySession implements PlayerRepo.
func (m *MongoGameRepo) PlayersBySession(ctx context.Context, sessionID string) ([]PlayerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	cur, err := m.players.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []PlayerRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// TopScores implements PlayerRepo.
// При равных очках порядок фиксируется вторичной сортировкой по player_id.
func (m *MongoGameRepo) TopScores(ctx context.Context, sessionID string, limit int) ([]ScoreEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	filter := bson.M{}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "player_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 0, "player_id": 1, "name": 1, "score": 1})

	cur, err := m.players.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var scores []ScoreEntry
	if err := cur.All(ctx, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// UpsertSession implements SessionRepo.
func (m *MongoGameRepo) UpsertSession(ctx context.Context, rec SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.sessions.UpdateOne(ctx,
		bson.M{"session_id": rec.SessionID},
		bson.M{"$set": bson.M{
			"weather":         rec.Weather,
			"treasures_count": rec.TreasuresCount,
			"hazards_count":   rec.HazardsCount,
			"players_count":   rec.PlayersCount,
			"last_updated":    rec.LastUpdated,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// ActiveSessions implements SessionRepo.
func (m *MongoGameRepo) ActiveSessions(ctx context.Context, since time.Time) ([]SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	cur, err := m.sessions.Find(ctx, bson.M{"last_updated": bson.M{"$gte": since}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []SessionRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Close terminates connection.
func (m *MongoGameRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
