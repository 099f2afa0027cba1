package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/config"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *sessionFixture) {
	t.Helper()
	fx := newSessionFixture(t)
	cfg := config.SessionConfig{QueueDepth: 16, IdleTimeout: time.Minute}
	m := NewManager(cfg, fx.executor, zap.NewNop(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, fx
}

func TestManager_OpenAndGet(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.Open("s1", Barista(), newCaptureSink())
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID())
	assert.Equal(t, "barista", sess.Persona().Name)

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, m.Len())
}

func TestManager_OpenGeneratesID(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.Open("", Coach(), newCaptureSink())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())
}

func TestManager_OpenDuplicate(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open("s1", Barista(), newCaptureSink())
	require.NoError(t, err)

	_, err = m.Open("s1", Barista(), newCaptureSink())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
}

func TestManager_CloseSessionRemoves(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open("s1", Barista(), newCaptureSink())
	require.NoError(t, err)

	m.CloseSession("s1")
	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManager_SessionsRunIndependently(t *testing.T) {
	m, fx := newTestManager(t)

	sinks := make([]*captureSink, 4)
	for i := range sinks {
		sinks[i] = newCaptureSink()
		sess, err := m.Open(fmt.Sprintf("s%d", i), Barista(), sinks[i])
		require.NoError(t, err)

		require.NoError(t, sess.Submit(Turn{
			Invocation: orderInvocation(t, fmt.Sprintf("Guest%d", i)),
		}))
		// 每个会话独立推进时钟不现实，同秒覆盖由写入器语义决定；
		// 这里用不同顾客名让文件名天然互不相同
		fx.clock.Advance(time.Second)
	}

	for i, sink := range sinks {
		sink.wait(t, 1)
		spoken := sink.spoken()
		require.Len(t, spoken, 1)
		assert.Contains(t, spoken[0], fmt.Sprintf("Guest%d", i))
	}

	entries, err := os.ReadDir(filepath.Join(fx.root, "orders"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestManager_ShutdownClosesAll(t *testing.T) {
	fx := newSessionFixture(t)
	cfg := config.SessionConfig{QueueDepth: 16, IdleTimeout: time.Minute}
	m := NewManager(cfg, fx.executor, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := m.Open(fmt.Sprintf("s%d", i), Coach(), newCaptureSink())
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, 0, m.Len())

	// 停机后不再接受新会话
	_, err := m.Open("late", Barista(), newCaptureSink())
	require.Error(t, err)
}

func TestManager_ShutdownDrainsPendingTurns(t *testing.T) {
	fx := newSessionFixture(t)
	cfg := config.SessionConfig{QueueDepth: 16, IdleTimeout: time.Minute}
	m := NewManager(cfg, fx.executor, zap.NewNop())

	sink := newCaptureSink()
	sess, err := m.Open("s1", Barista(), sink)
	require.NoError(t, err)
	require.NoError(t, sess.Submit(Turn{Invocation: orderInvocation(t, "Alex")}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	spoken := sink.spoken()
	require.Len(t, spoken, 1)
	assert.Contains(t, spoken[0], "for Alex")
}

func TestManager_InheritsSlotStore(t *testing.T) {
	slots := NewMemorySlotStore()
	m, fx := newTestManager(t, WithManagerSlotStore(slots))
	_ = fx

	sink := newCaptureSink()
	sess, err := m.Open("s1", Barista(), sink)
	require.NoError(t, err)

	require.NoError(t, sess.Submit(Turn{Invocation: orderInvocation(t, "Alex")}))
	sink.wait(t, 1)

	// 成功调用后槽位已清空，但存储确实被会话使用过
	remembered, err := slots.Recall(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, remembered)
}
