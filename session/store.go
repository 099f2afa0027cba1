// =============================================================================
// 💾 会话槽位存储
// =============================================================================
// 暂存对话中部分收集的字段（槽位），断线重连后可以恢复。
// 提供内存实现和 Redis 实现，禁用 Redis 时退回内存存储。
// =============================================================================
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/config"
)

// SlotStore 槽位存储接口
type SlotStore interface {
	// Remember 合并写入一个会话的槽位
	Remember(ctx context.Context, sessionID string, slots map[string]string) error
	// Recall 读取一个会话的全部槽位，没有时返回空 map
	Recall(ctx context.Context, sessionID string) (map[string]string, error)
	// Forget 清除一个会话的槽位
	Forget(ctx context.Context, sessionID string) error
}

// =============================================================================
// 🧠 内存实现
// =============================================================================

// MemorySlotStore 进程内槽位存储
type MemorySlotStore struct {
	mu    sync.RWMutex
	slots map[string]map[string]string
}

// NewMemorySlotStore 创建内存槽位存储
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{slots: make(map[string]map[string]string)}
}

// Remember 合并写入槽位
func (s *MemorySlotStore) Remember(_ context.Context, sessionID string, slots map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.slots[sessionID]
	if !ok {
		existing = make(map[string]string, len(slots))
		s.slots[sessionID] = existing
	}
	for k, v := range slots {
		existing[k] = v
	}
	return nil
}

// Recall 读取槽位副本
func (s *MemorySlotStore) Recall(_ context.Context, sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.slots[sessionID]))
	for k, v := range s.slots[sessionID] {
		out[k] = v
	}
	return out, nil
}

// Forget 清除槽位
func (s *MemorySlotStore) Forget(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, sessionID)
	return nil
}

// =============================================================================
// 🔴 Redis 实现
// =============================================================================

// RedisSlotStore 基于 Redis Hash 的槽位存储
type RedisSlotStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSlotStore 用已有客户端创建 Redis 槽位存储
func NewRedisSlotStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSlotStore {
	return &RedisSlotStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "slot_store")),
	}
}

// DialSlotStore 按配置连接 Redis 并创建槽位存储
func DialSlotStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisSlotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis slot store connected", zap.String("addr", cfg.Addr))
	return NewRedisSlotStore(client, cfg.SlotTTL, logger), nil
}

func (s *RedisSlotStore) key(sessionID string) string {
	return "intake:slots:" + sessionID
}

// Remember 合并写入槽位并刷新过期时间
func (s *RedisSlotStore) Remember(ctx context.Context, sessionID string, slots map[string]string) error {
	if len(slots) == 0 {
		return nil
	}

	key := s.key(sessionID)
	fields := make([]any, 0, len(slots)*2)
	for k, v := range slots {
		fields = append(fields, k, v)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("slot remember failed", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("slot remember failed: %w", err)
	}
	return nil
}

// Recall 读取槽位，没有时返回空 map
func (s *RedisSlotStore) Recall(ctx context.Context, sessionID string) (map[string]string, error) {
	slots, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		s.logger.Error("slot recall failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("slot recall failed: %w", err)
	}
	return slots, nil
}

// Forget 清除槽位
func (s *RedisSlotStore) Forget(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("slot forget failed: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (s *RedisSlotStore) Close() error {
	return s.client.Close()
}
