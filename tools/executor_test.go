package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/internal/metrics"
	"github.com/BaSui01/intake/store"
	"github.com/BaSui01/intake/testutil"
	"github.com/BaSui01/intake/types"
)

var testStamp = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type executorFixture struct {
	executor *Executor
	root     string
	clock    *testutil.FakeClock
}

func newFixture(t *testing.T, opts ...ExecutorOption) *executorFixture {
	t.Helper()

	root := t.TempDir()
	clock := testutil.NewFakeClock(testStamp)
	writer := store.NewFileWriter(root, zap.NewNop(), store.WithClock(clock))

	registry := NewRegistry(zap.NewNop())
	for _, tool := range All() {
		require.NoError(t, registry.Register(tool))
	}

	return &executorFixture{
		executor: NewExecutor(registry, writer, zap.NewNop(), opts...),
		root:     root,
		clock:    clock,
	}
}

func (f *executorFixture) files(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.root, dir))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestExecutor_SaveOrder_EndToEnd(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "vanilla syrup, extra shot",
		"name":       "Alex",
	})

	msg, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.NoError(t, err)
	assert.Contains(t, msg, "medium latte with oat milk")
	assert.Contains(t, msg, "vanilla syrup, extra shot")
	assert.Contains(t, msg, "for Alex")

	entries := f.files(t, "orders")
	require.Len(t, entries, 1)
	assert.Equal(t, "order_20260314_150926_Alex.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(f.root, "orders", entries[0].Name()))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "latte", parsed["drinkType"])
	assert.Equal(t, "medium", parsed["size"])
	assert.Equal(t, "oat", parsed["milk"])
	assert.Equal(t, []any{"vanilla syrup", "extra shot"}, parsed["extras"])
	assert.Equal(t, "Alex", parsed["name"])
	assert.Equal(t, "Brew Haven Coffee Shop", parsed["shop"])
	assert.Equal(t, "2026-03-14T15:09:26Z", parsed["timestamp"])
}

func TestExecutor_LogMeal_EndToEnd(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"meal_type":          "lunch",
		"food_items":         "rice, chicken",
		"portions":           "1 bowl, 200g",
		"estimated_calories": 550,
		"meal_time":          "1:00 PM",
		"user_name":          "Sam",
	})

	msg, err := f.executor.Dispatch(testutil.TestContext(t), OpLogMeal, args)
	require.NoError(t, err)
	assert.Contains(t, msg, "lunch")
	assert.Contains(t, msg, "550")
	assert.Contains(t, msg, "Sam")

	entries := f.files(t, "meals")
	require.Len(t, entries, 1)
	assert.Equal(t, "meal_20260314_150926_Sam.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(f.root, "meals", entries[0].Name()))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, []any{"rice", "chicken"}, parsed["foodItems"])
	assert.Equal(t, float64(550), parsed["estimatedCalories"])
	assert.Equal(t, "VitaTrack Wellness", parsed["platform"])
}

func TestExecutor_SetFitnessGoal(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"goal_type":      "weight loss",
		"current_status": "82 kg",
		"target_metric":  "lose 5 kg",
		"timeline":       "3 months",
		"user_name":      "Riley Brown",
	})

	msg, err := f.executor.Dispatch(testutil.TestContext(t), OpSetFitnessGoal, args)
	require.NoError(t, err)
	assert.Contains(t, msg, "weight loss")
	assert.Contains(t, msg, "Riley Brown")

	entries := f.files(t, "goals")
	require.Len(t, entries, 1)
	assert.Equal(t, "goal_20260314_150926_Riley_Brown.json", entries[0].Name())
}

func TestExecutor_TrackHealthMetric_EmptyNotes(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"metric_type": "weight",
		"value":       "78 kg",
		"notes":       "",
		"user_name":   "Sam",
	})

	msg, err := f.executor.Dispatch(testutil.TestContext(t), OpTrackHealthMetric, args)
	require.NoError(t, err)
	assert.Contains(t, msg, "weight")
	require.Len(t, f.files(t, "metrics"), 1)
}

func TestExecutor_NoneSentinels(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "espresso",
		"size":       "small",
		"milk":       "None",
		"extras":     "NONE",
		"name":       "Kim",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.NoError(t, err)

	entries := f.files(t, "orders")
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(f.root, "orders", entries[0].Name()))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "none", parsed["milk"])
	assert.Equal(t, []any{}, parsed["extras"])
}

func TestExecutor_MissingArgument_WritesNothing(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		// extras missing
		"name": "Alex",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Empty(t, f.files(t, "orders"))
}

func TestExecutor_EmptyArgument_WritesNothing(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "   ",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Empty(t, f.files(t, "orders"))
}

func TestExecutor_NumericName_WritesNothing(t *testing.T) {
	f := newFixture(t)
	// 字符串字段收到数字时必须拒绝，不能悄悄落成空标识符
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       42,
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Empty(t, f.files(t, "orders"))
}

func TestExecutor_MalformedCalories_WritesNothing(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"meal_type":          "lunch",
		"food_items":         "rice",
		"portions":           "1 bowl",
		"estimated_calories": "five hundred",
		"meal_time":          "1:00 PM",
		"user_name":          "Sam",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpLogMeal, args)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Empty(t, f.files(t, "meals"))
}

func TestExecutor_UnexpectedArgument(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
		"tip":        "5 dollars",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestExecutor_UnknownTool(t *testing.T) {
	f := newFixture(t)
	_, err := f.executor.Dispatch(testutil.TestContext(t), "delete_order", testutil.Args(t, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolNotFound, types.CodeOf(err))
}

func TestExecutor_MalformedArgumentsJSON(t *testing.T) {
	f := newFixture(t)
	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, json.RawMessage(`{"drink_type":`))
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestExecutor_NotIdempotent(t *testing.T) {
	f := newFixture(t)
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
	})

	ctx := testutil.TestContext(t)
	_, err := f.executor.Dispatch(ctx, OpSaveOrder, args)
	require.NoError(t, err)

	// 下一秒的相同参数产生独立的新记录
	f.clock.Advance(time.Second)
	_, err = f.executor.Dispatch(ctx, OpSaveOrder, args)
	require.NoError(t, err)

	assert.Len(t, f.files(t, "orders"), 2)
}

func TestExecutor_Execute_ResultShape(t *testing.T) {
	f := newFixture(t)
	res := f.executor.Execute(testutil.TestContext(t), Invocation{
		ID:   "call_1",
		Name: OpSaveOrder,
		Arguments: testutil.Args(t, map[string]any{
			"drink_type": "mocha",
			"size":       "large",
			"milk":       "whole",
			"extras":     "whipped cream",
			"name":       "Jo",
		}),
	})

	assert.False(t, res.IsError())
	assert.Equal(t, "call_1", res.InvocationID)
	assert.Equal(t, OpSaveOrder, res.Name)
	assert.NotEmpty(t, res.Message)
	assert.NotEmpty(t, res.Path)
}

func TestExecutor_Execute_ErrorResult(t *testing.T) {
	f := newFixture(t)
	res := f.executor.Execute(testutil.TestContext(t), Invocation{
		Name:      OpSaveOrder,
		Arguments: testutil.Args(t, map[string]any{"drink_type": "latte"}),
	})

	assert.True(t, res.IsError())
	assert.Empty(t, res.Message)
	assert.Contains(t, res.Err, "missing required argument")
}

func TestExecutor_RateLimited(t *testing.T) {
	root := t.TempDir()
	writer := store.NewFileWriter(root, zap.NewNop(), store.WithClock(testutil.NewFakeClock(testStamp)))

	registry := NewRegistry(zap.NewNop())
	tool := SaveOrder()
	tool.RateLimit = &RateLimitConfig{MaxCalls: 1, Window: time.Hour}
	require.NoError(t, registry.Register(tool))

	executor := NewExecutor(registry, writer, zap.NewNop())
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
	})

	ctx := context.Background()
	_, err := executor.Dispatch(ctx, OpSaveOrder, args)
	require.NoError(t, err)

	_, err = executor.Dispatch(ctx, OpSaveOrder, args)
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.CodeOf(err))
}

func TestExecutor_CollectorObservesWrite(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("intake", reg, zap.NewNop())

	f := newFixture(t, WithCollector(collector))
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
	})

	_, err := f.executor.Dispatch(testutil.TestContext(t), OpSaveOrder, args)
	require.NoError(t, err)

	// 成功落盘后 kind=order 的写入计数必须前进
	assert.Equal(t, 1.0, counterValue(t, reg, "intake_records_written_total", "kind", "order"))
	assert.Equal(t, 1.0, counterValue(t, reg, "intake_tool_invocations_total", "outcome", "ok"))
}

// counterValue 从 registry 中读取带指定标签的计数器值
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelName, labelValue string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == labelName && l.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, labelName, labelValue)
	return 0
}

func TestExecutor_WithIndex_RecordsLedgerEntry(t *testing.T) {
	ix, err := store.OpenIndex(filepath.Join(t.TempDir(), "intake.db"), zap.NewNop())
	require.NoError(t, err)

	f := newFixture(t, WithIndex(ix))
	args := testutil.Args(t, map[string]any{
		"drink_type": "latte",
		"size":       "medium",
		"milk":       "oat",
		"extras":     "none",
		"name":       "Alex",
	})

	ctx := testutil.TestContext(t)
	_, err = f.executor.Dispatch(ctx, OpSaveOrder, args)
	require.NoError(t, err)

	entries, err := ix.ByIdentifier(ctx, "Alex", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "order", entries[0].Kind)
}
