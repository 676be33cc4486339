package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/wordbot/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the shared session cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps sessions as JSON values so several bot processes share them
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to Redis
func NewRedisStore(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "wordbot:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *RedisStore) userKey(userID int64) string {
	return r.prefix + "session:user:" + strconv.FormatInt(userID, 10)
}
func (r *RedisStore) deadlinesKey() string { return r.prefix + "session:blitz_deadlines" }

func (r *RedisStore) Create(ctx context.Context, s *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.sessionKey(s.ID), data, ttl).Result()
	if err != nil {
		return unavailable("store session", err)
	}
	if !ok {
		return fmt.Errorf("create session %s: %w", s.ID, models.ErrSessionConflict)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.userKey(s.UserID), s.ID, ttl)
		if s.Mode == models.ModeBlitz && s.Deadline != nil {
			pipe.ZAdd(ctx, r.deadlinesKey(), redis.Z{Score: float64(s.Deadline.UnixMilli()), Member: s.ID})
		}
		return nil
	})
	if err != nil {
		return unavailable("index session", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return r.get(ctx, r.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) get(ctx context.Context, c getter, id string) (*models.Session, error) {
	val, err := c.Get(ctx, r.sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("load session", err)
	}
	var s models.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("deserialize session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, s *models.Session, expected int64, ttl time.Duration) error {
	key, userKey := r.sessionKey(s.ID), r.userKey(s.UserID)

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.get(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if cur.Version != expected {
			return fmt.Errorf("session %s at version %d, expected %d: %w", s.ID, cur.Version, expected, models.ErrSessionConflict)
		}
		owner, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return unavailable("load active session", err)
		}

		next := *s
		next.Version = expected + 1
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("serialize session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			if next.Status == models.StatusActive {
				pipe.Set(ctx, userKey, next.ID, ttl)
			} else {
				pipe.ZRem(ctx, r.deadlinesKey(), next.ID)
				if owner == next.ID {
					pipe.Del(ctx, userKey)
				}
			}
			return nil
		})
		return err
	}, key, userKey)

	switch {
	case err == nil:
		s.Version = expected + 1
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("session %s changed concurrently: %w", s.ID, models.ErrSessionConflict)
	case errors.Is(err, models.ErrSessionConflict), errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrStoreUnavailable):
		return err
	}
	return unavailable("swap session", err)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return r.rdb.ZRem(ctx, r.deadlinesKey(), id).Err()
	}
	if err != nil {
		return err
	}
	owner, err := r.rdb.Get(ctx, r.userKey(s.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("load active session", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		pipe.ZRem(ctx, r.deadlinesKey(), id)
		if owner == id {
			pipe.Del(ctx, r.userKey(s.UserID))
		}
		return nil
	})
	if err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

func (r *RedisStore) ActiveByUser(ctx context.Context, userID int64) (*models.Session, error) {
	id, err := r.rdb.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("active session of user %d: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("load active session", err)
	}
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusActive {
		return nil, fmt.Errorf("active session of user %d: %w", userID, models.ErrNotFound)
	}
	return s, nil
}

func (r *RedisStore) ExpiredBlitz(ctx context.Context, asOf time.Time) ([]string, error) {
	ids, err := r.rdb.ZRangeByScore(ctx, r.deadlinesKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(asOf.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, unavailable("scan blitz deadlines", err)
	}
	return ids, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
