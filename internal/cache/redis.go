package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// Redis backs the cache with a shared Redis instance so eligibility
// counters survive restarts and are shared across replicas.
type Redis struct {
	rdb *redis.Client
	ctx context.Context
}

func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{rdb: rdb, ctx: context.Background()}
}

func (r *Redis) Ping() error { return r.rdb.Ping(r.ctx).Err() }

func (r *Redis) getJSON(key string, out interface{}) error {
	raw, err := r.rdb.Get(r.ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

func (r *Redis) setJSON(key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.rdb.Set(r.ctx, key, raw, ttl).Err()
}

func (r *Redis) GetEligibility(userID, courseID string) (eligibility.Record, error) {
	var rec eligibility.Record
	if err := r.getJSON(eligibilityKey(userID, courseID), &rec); err != nil {
		return eligibility.Record{}, err
	}
	return rec, nil
}

func (r *Redis) SetEligibility(userID, courseID string, rec eligibility.Record, ttl time.Duration) error {
	return r.setJSON(eligibilityKey(userID, courseID), rec, ttl)
}

func (r *Redis) InvalidateEligibility(userID, courseID string) error {
	return r.rdb.Del(r.ctx, eligibilityKey(userID, courseID)).Err()
}

func (r *Redis) GetStats(userID, courseID string) (quiz.Stats, error) {
	var st quiz.Stats
	if err := r.getJSON(statsKey(userID, courseID), &st); err != nil {
		return quiz.Stats{}, err
	}
	return st, nil
}

func (r *Redis) SetStats(userID, courseID string, st quiz.Stats, ttl time.Duration) error {
	return r.setJSON(statsKey(userID, courseID), st, ttl)
}

func (r *Redis) InvalidateStats(userID, courseID string) error {
	return r.rdb.Del(r.ctx, statsKey(userID, courseID)).Err()
}
