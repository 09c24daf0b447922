package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const memoryTTL = 24 * time.Hour

// Memory keeps the recent turns of each conversation, oldest first.
type Memory interface {
	Load(ctx context.Context, conversationID string) ([]Message, error)
	Append(ctx context.Context, conversationID string, msgs ...Message) error
	Reset(ctx context.Context, conversationID string) error
}

// RedisMemory stores each conversation as a capped Redis list.
type RedisMemory struct {
	rdb   *redis.Client
	limit int
}

func NewRedisMemory(rdb *redis.Client, limit int) *RedisMemory {
	return &RedisMemory{rdb: rdb, limit: limit}
}

func memoryKey(id string) string { return "chat:" + id }

func (m *RedisMemory) Load(ctx context.Context, id string) ([]Message, error) {
	raw, err := m.rdb.LRange(ctx, memoryKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat memory: %w", err)
	}
	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(r), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *RedisMemory) Append(ctx context.Context, id string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, len(msgs))
	for i, msg := range msgs {
		b, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		values[i] = b
	}

	key := memoryKey(id)
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.LTrim(ctx, key, int64(-m.limit), -1)
		p.Expire(ctx, key, memoryTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat memory: %w", err)
	}
	return nil
}

func (m *RedisMemory) Reset(ctx context.Context, id string) error {
	return m.rdb.Del(ctx, memoryKey(id)).Err()
}
