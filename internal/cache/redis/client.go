package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
)

// Client holds chat sessions and the short-lived embedding cache. Sessions
// are stored as one JSON document per (tenant, session) key and never expire
// on their own; deletion is an explicit API call.
type Client struct {
	client *redis.Client
}

func NewClient(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func sessionKey(tenantID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", tenantID, sessionID)
}

func (c *Client) GetSession(ctx context.Context, tenantID, sessionID string) (*models.ChatSession, bool, error) {
	data, err := c.client.Get(ctx, sessionKey(tenantID, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, true, nil
}

// SaveSession is a whole-document write. Concurrent saves to the same
// session are last-write-wins; chat is sequential per user so this is
// accepted rather than guarded.
func (c *Client) SaveSession(ctx context.Context, session *models.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = c.client.Set(ctx, sessionKey(session.TenantID, session.SessionID), data, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (c *Client) DeleteSession(ctx context.Context, tenantID, sessionID string) error {
	err := c.client.Del(ctx, sessionKey(tenantID, sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	logger.Info("Session deleted",
		zap.String("tenant_id", tenantID),
		zap.String("session_id", sessionID),
	)
	return nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}
