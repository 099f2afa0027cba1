package tools

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/intake/record"
	"github.com/BaSui01/intake/types"
)

// ConfirmFunc renders the spoken confirmation for a persisted record.
// It must restate the key facts so the user can verify correctness.
type ConfirmFunc func(rec *types.Record) string

// RateLimitConfig defines rate limit configuration for one tool.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls
	Window   time.Duration // Time window
}

// Tool binds an operation name to the record kind it persists and the
// confirmation it speaks back. The argument schema is derived from the
// kind's field table, never written by hand.
type Tool struct {
	Schema    Schema
	Kind      types.RecordKind
	Confirm   ConfirmFunc
	RateLimit *RateLimitConfig // optional
}

// Registry maps operation names to tools. Registration validates each
// tool against the field spec tables up front, so a mis-declared tool
// fails at startup rather than mid-conversation.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*Tool
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewRegistry 创建工具注册中心。
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]*Tool),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "tools")),
	}
}

// Register adds a tool. The tool's kind must have a field schema and the
// name must be unused.
func (r *Registry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Schema.Name == "" {
		return types.NewError(types.ErrValidation, "tool name is empty")
	}
	if t.Confirm == nil {
		return types.NewErrorf(types.ErrValidation, "tool %s has no confirmation", t.Schema.Name).WithTool(t.Schema.Name)
	}
	if _, err := record.SchemaFor(t.Kind); err != nil {
		return types.NewErrorf(types.ErrValidation, "tool %s: %v", t.Schema.Name, err).WithTool(t.Schema.Name)
	}
	if _, exists := r.tools[t.Schema.Name]; exists {
		return types.NewErrorf(types.ErrToolExists, "tool %s already registered", t.Schema.Name).WithTool(t.Schema.Name)
	}

	r.tools[t.Schema.Name] = t

	if t.RateLimit != nil && t.RateLimit.MaxCalls > 0 {
		interval := t.RateLimit.Window / time.Duration(t.RateLimit.MaxCalls)
		r.limiters[t.Schema.Name] = rate.NewLimiter(rate.Every(interval), t.RateLimit.MaxCalls)
	}

	r.logger.Info("tool registered",
		zap.String("name", t.Schema.Name),
		zap.String("kind", string(t.Kind)),
	)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, types.NewErrorf(types.ErrToolNotFound, "tool %s not registered", name).WithTool(name)
	}
	return t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the schemas of all registered tools, for handing to the
// conversational driver.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema)
	}
	return out
}

// allow consumes one rate limit token for name. Tools without a limit
// always pass.
func (r *Registry) allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}
