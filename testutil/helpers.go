// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助：带超时的上下文、可推进的假时钟、参数构造。
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	clock := testutil.NewFakeClock(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC))
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// FakeClock 可手动推进的时钟，用于确定性的文件名与时间戳测试
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 创建固定在 t 的假时钟
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now 返回当前假时间
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 将假时间向前推进 d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Args 将任意参数映射编码为工具调用的原始 JSON 参数
func Args(t *testing.T, m map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return data
}
