package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrChallengeNotFound is returned when no challenge is stored under a key
var ErrChallengeNotFound = errors.New("challenge not found")

// challengeRetention keeps expired challenges around long enough to tell
// "expired" apart from "unknown"
const challengeRetention = time.Hour

// ChallengeRepository defines the interface for CAPTCHA challenge storage
type ChallengeRepository interface {
	SaveChallenge(ctx context.Context, challenge *models.Challenge) error
	GetChallenge(ctx context.Context, key string) (*models.Challenge, error)
	// TakeChallenge atomically loads and removes a challenge, so each key
	// can be answered once
	TakeChallenge(ctx context.Context, key string) (*models.Challenge, error)
}

// RedisChallengeRepository implements ChallengeRepository for Redis
type RedisChallengeRepository struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisChallengeRepository creates a new RedisChallengeRepository
func NewRedisChallengeRepository(rdb *redis.Client) *RedisChallengeRepository {
	return &RedisChallengeRepository{rdb: rdb, prefix: "captcha:"}
}

// SaveChallenge stores the challenge as JSON until shortly after it expires
func (r *RedisChallengeRepository) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	value, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	ttl := time.Until(challenge.ExpiresAt) + challengeRetention
	return r.rdb.Set(ctx, r.prefix+challenge.Key, value, ttl).Err()
}

// GetChallenge loads a challenge by key
func (r *RedisChallengeRepository) GetChallenge(ctx context.Context, key string) (*models.Challenge, error) {
	return decodeChallenge(key, r.rdb.Get(ctx, r.prefix+key))
}

// TakeChallenge loads and deletes a challenge with GETDEL
func (r *RedisChallengeRepository) TakeChallenge(ctx context.Context, key string) (*models.Challenge, error) {
	return decodeChallenge(key, r.rdb.GetDel(ctx, r.prefix+key))
}

func decodeChallenge(key string, cmd *redis.StringCmd) (*models.Challenge, error) {
	value, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	var challenge models.Challenge
	if err := json.Unmarshal(value, &challenge); err != nil {
		return nil, fmt.Errorf("malformed challenge %q: %w", key, err)
	}
	return &challenge, nil
}

// MongoChallengeRepository implements ChallengeRepository for MongoDB
type MongoChallengeRepository struct {
	collection *mongo.Collection
}

// NewMongoChallengeRepository creates a new MongoChallengeRepository
func NewMongoChallengeRepository(db *mongo.Database) *MongoChallengeRepository {
	return &MongoChallengeRepository{collection: db.Collection("captcha_challenges")}
}

// EnsureIndexes creates the TTL index that purges old challenges
func (r *MongoChallengeRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(challengeRetention.Seconds())),
	})
	return err
}

// SaveChallenge inserts a challenge document
func (r *MongoChallengeRepository) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	_, err := r.collection.InsertOne(ctx, challenge)
	return err
}

// GetChallenge loads a challenge by key
func (r *MongoChallengeRepository) GetChallenge(ctx context.Context, key string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&challenge)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// TakeChallenge loads and deletes a challenge document in one operation
func (r *MongoChallengeRepository) TakeChallenge(ctx context.Context, key string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": key}).Decode(&challenge)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}
