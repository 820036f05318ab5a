package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoints in Redis, one list per session.
// Use it when several processes serve the same sessions.
type RedisStore struct {
	client     *backend.Client
	prefix     string
	ttl        time.Duration
	maxHistory int64
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires a session's checkpoints after ttl of inactivity.
// Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithMaxHistory caps how many checkpoints are kept per session.
// The newest are retained. Zero keeps all.
func WithMaxHistory(n int) RedisOption {
	return func(s *RedisStore) {
		s.maxHistory = int64(n)
	}
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "scoutgraph:checkpoint:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// redisRecord is the list element format.
type redisRecord struct {
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) seqKey(sessionID string) string {
	return s.prefix + sessionID + ":seq"
}

// Setup implements Store. It checks the connection.
func (s *RedisStore) Setup(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sessionID, nodeID string, data []byte) error {
	seq, err := s.client.Incr(ctx, s.seqKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	rec, err := json.Marshal(redisRecord{
		NodeID:    nodeID,
		Sequence:  int(seq),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(sessionID), rec)
	if s.maxHistory > 0 {
		pipe.LTrim(ctx, s.key(sessionID), -s.maxHistory, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
		pipe.Expire(ctx, s.seqKey(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := s.client.LIndex(ctx, s.key(sessionID), -1).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return rec.Data, nil
}

// LoadAt implements Store.
func (s *RedisStore) LoadAt(ctx context.Context, sessionID string, sequence int) ([]byte, error) {
	recs, err := s.records(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.Sequence == sequence {
			return rec.Data, nil
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, sessionID string) ([]Info, error) {
	recs, err := s.records(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, Info{
			SessionID: sessionID,
			NodeID:    rec.NodeID,
			Sequence:  rec.Sequence,
			Timestamp: rec.Timestamp,
			Size:      int64(len(rec.Data)),
		})
	}
	return infos, nil
}

func (s *RedisStore) records(ctx context.Context, sessionID string) ([]redisRecord, error) {
	raws, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	recs := make([]redisRecord, 0, len(raws))
	for _, raw := range raws {
		var rec redisRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// DeleteSession implements Store.
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID), s.seqKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session checkpoints: %w", err)
	}
	return nil
}

// Close implements Store. The client is owned by the caller and left open.
func (s *RedisStore) Close() error {
	return nil
}
