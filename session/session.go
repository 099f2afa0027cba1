// =============================================================================
// 🗣️ 会话: 单路对话的回合循环
// =============================================================================
// 每个会话持有一个 FIFO 邮箱，回合严格按提交顺序逐一处理；
// 不同会话之间互不阻塞。工具调用回合经 Executor 落盘，
// 普通话语回合交给外部 Responder（对话模型）生成回复。
// =============================================================================
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/intake/internal/metrics"
	"github.com/BaSui01/intake/tools"
	"github.com/BaSui01/intake/types"
)

// Turn 一个对话回合: 要么是普通话语，要么是结构化工具调用
type Turn struct {
	// 用户话语文本
	Utterance string
	// 工具调用，非 nil 时优先于 Utterance
	Invocation *tools.Invocation
}

// Sink 接收会话面向用户的输出
type Sink interface {
	// Speak 输出待播报的文本
	Speak(ctx context.Context, text string) error
	// Reject 报告一次失败的工具调用
	Reject(ctx context.Context, res tools.Result) error
}

// Responder 外部对话模型，处理普通话语回合。
// 核心不依赖任何具体模型，为 nil 时话语回合仅记录日志。
type Responder interface {
	Respond(ctx context.Context, persona Persona, utterance string) (string, error)
}

// Session 一路对话会话
type Session struct {
	id       string
	persona  Persona
	executor *tools.Executor
	sink     Sink

	slots     SlotStore
	responder Responder
	collector *metrics.Collector

	mailbox     chan Turn
	idleTimeout time.Duration

	logger    *zap.Logger
	closeMu   sync.RWMutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Option 会话选项
type Option func(*Session)

// WithSlotStore 设置槽位存储
func WithSlotStore(store SlotStore) Option {
	return func(s *Session) { s.slots = store }
}

// WithResponder 设置话语回合的对话模型
func WithResponder(r Responder) Option {
	return func(s *Session) { s.responder = r }
}

// WithQueueDepth 设置邮箱深度
func WithQueueDepth(depth int) Option {
	return func(s *Session) { s.mailbox = make(chan Turn, depth) }
}

// WithIdleTimeout 设置空闲超时，0 表示不超时
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) { s.idleTimeout = d }
}

// WithSessionCollector 设置指标收集器
func WithSessionCollector(c *metrics.Collector) Option {
	return func(s *Session) { s.collector = c }
}

// NewSession 创建会话
func NewSession(id string, persona Persona, executor *tools.Executor, sink Sink, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		id:       id,
		persona:  persona,
		executor: executor,
		sink:     sink,
		mailbox:  make(chan Turn, 32),
		logger: logger.With(
			zap.String("component", "session"),
			zap.String("session_id", id),
			zap.String("persona", persona.Name),
		),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID 返回会话 ID
func (s *Session) ID() string { return s.id }

// Persona 返回会话人格
func (s *Session) Persona() Persona { return s.persona }

// Submit 提交一个回合。邮箱满时返回 ErrQueueFull，
// 会话已关闭时返回 ErrSessionClosed。
func (s *Session) Submit(turn Turn) error {
	// 持读锁入队：Close 在写锁内关闭信号，保证入队要么先于关闭
	// （由 drain 处理），要么观察到已关闭，不会在 drain 之后丢回合
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	select {
	case <-s.closed:
		return types.NewErrorf(types.ErrSessionClosed, "session %s is closed", s.id)
	default:
	}

	select {
	case <-s.closed:
		return types.NewErrorf(types.ErrSessionClosed, "session %s is closed", s.id)
	case s.mailbox <- turn:
		return nil
	default:
		return types.NewErrorf(types.ErrQueueFull, "session %s mailbox is full", s.id)
	}
}

// Close 请求关闭会话。Run 会先处理完已入队的回合再退出，
// 落盘由原子写入保证，不会留下半成品文件。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		close(s.closed)
		s.closeMu.Unlock()
	})
}

// Run 运行回合循环，直到会话关闭、上下文取消或空闲超时。
// 回合严格按提交顺序处理。
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session started")
	defer s.logger.Info("session stopped")

	var idle <-chan time.Time
	var timer *time.Timer
	if s.idleTimeout > 0 {
		timer = time.NewTimer(s.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.closed:
			s.drain(ctx)
			return nil

		case turn := <-s.mailbox:
			s.handle(ctx, turn)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.idleTimeout)
			}

		case <-idle:
			s.logger.Info("session idle timeout")
			s.Close()
		}
	}
}

// drain 处理关闭时邮箱中剩余的回合
func (s *Session) drain(ctx context.Context) {
	for {
		select {
		case turn := <-s.mailbox:
			s.handle(ctx, turn)
		default:
			return
		}
	}
}

// handle 处理单个回合
func (s *Session) handle(ctx context.Context, turn Turn) {
	if turn.Invocation != nil {
		s.observeTurn("tool_call")
		s.handleInvocation(ctx, *turn.Invocation)
		return
	}
	s.observeTurn("utterance")
	s.handleUtterance(ctx, turn.Utterance)
}

func (s *Session) handleInvocation(ctx context.Context, inv tools.Invocation) {
	// 调用前暂存原始参数，校验失败后重连仍可恢复已收集字段
	s.rememberSlots(ctx, inv)

	res := s.executor.Execute(ctx, inv)
	if res.IsError() {
		s.logger.Warn("tool invocation rejected",
			zap.String("tool", inv.Name),
			zap.String("error", res.Err),
		)
		if err := s.sink.Reject(ctx, res); err != nil {
			s.logger.Error("sink reject failed", zap.Error(err))
		}
		return
	}

	// 落盘成功，槽位不再需要
	s.forgetSlots(ctx)

	if err := s.sink.Speak(ctx, res.Message); err != nil {
		s.logger.Error("sink speak failed", zap.Error(err))
	}
}

func (s *Session) handleUtterance(ctx context.Context, text string) {
	if s.responder == nil {
		s.logger.Debug("utterance received without responder", zap.Int("len", len(text)))
		return
	}

	reply, err := s.responder.Respond(ctx, s.persona, text)
	if err != nil {
		s.logger.Error("responder failed", zap.Error(err))
		return
	}
	if reply == "" {
		return
	}
	if err := s.sink.Speak(ctx, reply); err != nil {
		s.logger.Error("sink speak failed", zap.Error(err))
	}
}

// rememberSlots 把调用参数按字符串形式写入槽位存储
func (s *Session) rememberSlots(ctx context.Context, inv tools.Invocation) {
	if s.slots == nil || len(inv.Arguments) == 0 {
		return
	}

	var args map[string]any
	if err := json.Unmarshal(inv.Arguments, &args); err != nil {
		return
	}

	slots := make(map[string]string, len(args))
	for k, v := range args {
		slots[k] = fmt.Sprint(v)
	}
	if err := s.slots.Remember(ctx, s.id, slots); err != nil {
		s.logger.Warn("slot remember failed", zap.Error(err))
	}
}

func (s *Session) forgetSlots(ctx context.Context) {
	if s.slots == nil {
		return
	}
	if err := s.slots.Forget(ctx, s.id); err != nil {
		s.logger.Warn("slot forget failed", zap.Error(err))
	}
}

func (s *Session) observeTurn(turnType string) {
	if s.collector != nil {
		s.collector.ObserveTurn(turnType)
	}
}
