package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const chatTTL = 7 * 24 * time.Hour

// RedisChat is a redis-backed ChatStore; sessions and their message lists
// expire after a week of inactivity.
type RedisChat struct {
	client *redis.Client
}

var _ ChatStore = (*RedisChat)(nil)

func NewRedisChat(client *redis.Client) *RedisChat {
	return &RedisChat{client: client}
}

func sessionKey(id string) string  { return "flowstack:chat:session:" + id }
func messagesKey(id string) string { return "flowstack:chat:messages:" + id }

func (r *RedisChat) CreateSession(ctx context.Context, session *ChatSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode chat session")
	}
	return r.client.Set(ctx, sessionKey(session.ID), data, chatTTL).Err()
}

func (r *RedisChat) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load chat session")
	}
	var session ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "decode chat session")
	}
	return &session, nil
}

func (r *RedisChat) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	if _, err := r.GetSession(ctx, msg.SessionID); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode chat message")
	}
	key := messagesKey(msg.SessionID)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return errors.Wrap(err, "append chat message")
	}
	return r.client.Expire(ctx, key, chatTTL).Err()
}

func (r *RedisChat) ListMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error) {
	raw, err := r.client.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list chat messages")
	}
	out := make([]*ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, errors.Wrap(err, "decode chat message")
		}
		out = append(out, &msg)
	}
	return out, nil
}
