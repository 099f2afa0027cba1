// =============================================================================
// 🧵 会话管理器
// =============================================================================
// 管理并发运行的多路会话。每路会话在独立 goroutine 中运行，
// 由 errgroup 统一回收；会话之间互不阻塞。
// =============================================================================
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/intake/config"
	"github.com/BaSui01/intake/internal/metrics"
	"github.com/BaSui01/intake/tools"
	"github.com/BaSui01/intake/types"
)

// Manager 会话管理器
type Manager struct {
	cfg      config.SessionConfig
	executor *tools.Executor

	slots     SlotStore
	responder Responder
	collector *metrics.Collector
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithManagerSlotStore 设置槽位存储，新会话自动继承
func WithManagerSlotStore(store SlotStore) ManagerOption {
	return func(m *Manager) { m.slots = store }
}

// WithManagerResponder 设置对话模型，新会话自动继承
func WithManagerResponder(r Responder) ManagerOption {
	return func(m *Manager) { m.responder = r }
}

// WithManagerCollector 设置指标收集器
func WithManagerCollector(c *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.collector = c }
}

// NewManager 创建会话管理器
func NewManager(cfg config.SessionConfig, executor *tools.Executor, logger *zap.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)

	m := &Manager{
		cfg:      cfg,
		executor: executor,
		logger:   logger.With(zap.String("component", "session_manager")),
		sessions: make(map[string]*Session),
		eg:       eg,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open 打开一路新会话并启动其回合循环。
// id 为空时自动生成；重复 id 返回错误。
func (m *Manager) Open(id string, persona Persona, sink Sink) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, types.NewError(types.ErrSessionClosed, "session manager is shut down")
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s already open", id)
	}

	sess := NewSession(id, persona, m.executor, sink, m.logger,
		WithSlotStore(m.slots),
		WithResponder(m.responder),
		WithQueueDepth(m.cfg.QueueDepth),
		WithIdleTimeout(m.cfg.IdleTimeout),
		WithSessionCollector(m.collector),
	)
	m.sessions[id] = sess
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.SessionStarted()
	}

	m.eg.Go(func() error {
		defer func() {
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
			if m.collector != nil {
				m.collector.SessionEnded()
			}
		}()
		err := sess.Run(m.ctx)
		if err != nil && err != context.Canceled {
			m.logger.Warn("session exited with error",
				zap.String("session_id", id), zap.Error(err))
		}
		// 单路会话出错不拉倒整个管理器
		return nil
	})

	m.logger.Info("session opened",
		zap.String("session_id", id),
		zap.String("persona", persona.Name),
	)
	return sess, nil
}

// Get 按 ID 查找会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Len 返回当前活跃会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseSession 关闭指定会话，不存在时为空操作
func (m *Manager) CloseSession(id string) {
	if sess, ok := m.Get(id); ok {
		sess.Close()
	}
}

// Shutdown 关闭所有会话并等待回合循环退出。
// 已入队的回合会先处理完；ctx 到期后强制取消。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		open = append(open, sess)
	}
	m.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}

	done := make(chan error, 1)
	go func() { done <- m.eg.Wait() }()

	select {
	case err := <-done:
		m.cancel()
		m.logger.Info("session manager shut down")
		return err
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}
