package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/internal/metrics"
	"github.com/BaSui01/intake/record"
	"github.com/BaSui01/intake/store"
	"github.com/BaSui01/intake/types"
)

// Invocation is one typed tool call from the conversational driver.
type Invocation struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Result is the outcome of one invocation. Message is the
// natural-language confirmation suitable for direct vocalization; Err is
// set instead when the call was rejected or the write failed.
type Result struct {
	InvocationID string        `json:"invocation_id,omitempty"`
	Name         string        `json:"name"`
	Message      string        `json:"message,omitempty"`
	Path         string        `json:"path,omitempty"`
	Err          string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// IsError returns true if the invocation failed.
func (r Result) IsError() bool { return r.Err != "" }

// Executor validates invocations against the field spec tables,
// normalizes arguments, and persists exactly one record per successful
// call. Validation failures write nothing.
type Executor struct {
	registry  *Registry
	writer    store.Writer
	index     *store.Index
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithIndex records every successful write in the embedded ledger.
func WithIndex(ix *store.Index) ExecutorOption {
	return func(e *Executor) { e.index = ix }
}

// WithCollector reports invocation metrics.
func WithCollector(c *metrics.Collector) ExecutorOption {
	return func(e *Executor) { e.collector = c }
}

// NewExecutor 创建工具执行器。
func NewExecutor(registry *Registry, writer store.Writer, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		writer:   writer,
		logger:   logger.With(zap.String("component", "executor")),
		tracer:   otel.Tracer("intake/tools"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch invokes the named operation and returns the spoken
// confirmation. It is the single entry point the session layer uses.
func (e *Executor) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	res, err := e.execute(ctx, Invocation{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// Execute invokes one tool call and reports the outcome as a Result,
// never as a Go error; the session layer turns Err back into a spoken
// apology.
func (e *Executor) Execute(ctx context.Context, inv Invocation) Result {
	res, err := e.execute(ctx, inv)
	if err != nil {
		return Result{
			InvocationID: inv.ID,
			Name:         inv.Name,
			Err:          err.Error(),
			Duration:     res.Duration,
		}
	}
	return res
}

func (e *Executor) execute(ctx context.Context, inv Invocation) (Result, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "tool."+inv.Name,
		trace.WithAttributes(attribute.String("tool.name", inv.Name)),
	)
	defer span.End()

	res := Result{InvocationID: inv.ID, Name: inv.Name}

	fail := func(err error) (Result, error) {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		res.Duration = time.Since(start)
		e.observe(inv.Name, outcomeOf(err), res.Duration)
		return res, err
	}

	tool, err := e.registry.Get(inv.Name)
	if err != nil {
		return fail(err)
	}

	if !e.registry.allow(inv.Name) {
		return fail(types.NewErrorf(types.ErrRateLimited, "tool %s rate limited", inv.Name).WithTool(inv.Name))
	}

	schema, err := record.SchemaFor(tool.Kind)
	if err != nil {
		return fail(types.NewErrorf(types.ErrValidation, "tool %s: %v", inv.Name, err).WithTool(inv.Name))
	}

	args, err := decodeArguments(inv.Arguments)
	if err != nil {
		return fail(types.NewError(types.ErrValidation, "malformed arguments").WithTool(inv.Name).WithCause(err))
	}

	rec, err := e.assemble(tool, schema, args)
	if err != nil {
		return fail(err)
	}

	writeStart := time.Now()
	path, err := e.writer.Write(ctx, rec)
	if err != nil {
		return fail(err)
	}
	if e.collector != nil {
		e.collector.ObserveRecordWritten(string(tool.Kind), time.Since(writeStart))
	}

	if e.index != nil {
		identifier := rec.Identifier(schema.IdentifierKey())
		if err := e.index.Add(ctx, rec, identifier, path); err != nil {
			// 文件已落盘；索引失败只记录，不影响确认
			e.logger.Warn("index entry failed", zap.String("tool", inv.Name), zap.Error(err))
		}
	}

	res.Message = tool.Confirm(rec)
	res.Path = path
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.String("record.path", path))
	e.observe(inv.Name, "ok", res.Duration)
	e.logger.Info("tool dispatched",
		zap.String("tool", inv.Name),
		zap.String("kind", string(tool.Kind)),
		zap.String("path", path),
		zap.Duration("duration", res.Duration),
	)

	return res, nil
}

// assemble validates every declared argument and builds the normalized
// record in schema order. Any violation aborts before a single byte is
// written.
func (e *Executor) assemble(tool *Tool, schema *record.Schema, args map[string]any) (*types.Record, error) {
	for name := range args {
		if _, ok := schema.Field(name); !ok {
			return nil, types.NewErrorf(types.ErrValidation, "unexpected argument %q", name).
				WithTool(tool.Schema.Name).WithField(name)
		}
	}

	rec := types.NewRecord(tool.Kind)
	rec.OriginKey = schema.OriginKey
	rec.OriginValue = schema.OriginValue

	for _, spec := range schema.Fields() {
		raw, ok := args[spec.Name]
		if !ok {
			return nil, types.NewErrorf(types.ErrValidation, "missing required argument %q", spec.Name).
				WithTool(tool.Schema.Name).WithField(spec.Name)
		}
		if s, isStr := raw.(string); isStr && spec.Type != types.FieldText && strings.TrimSpace(s) == "" {
			return nil, types.NewErrorf(types.ErrValidation, "required argument %q is empty", spec.Name).
				WithTool(tool.Schema.Name).WithField(spec.Name)
		}

		value, err := record.Normalize(spec, raw)
		if err != nil {
			var verr *types.Error
			if errors.As(err, &verr) {
				return nil, verr.WithTool(tool.Schema.Name)
			}
			return nil, types.NewErrorf(types.ErrValidation, "argument %q: %v", spec.Name, err).
				WithTool(tool.Schema.Name).WithField(spec.Name)
		}
		rec.Set(spec.JSONKey, value)
	}

	return rec, nil
}

// decodeArguments 解码原始 JSON 参数，数字保留为 json.Number。
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (e *Executor) observe(name, outcome string, d time.Duration) {
	if e.collector != nil {
		e.collector.ObserveToolInvocation(name, outcome, d)
	}
}

func outcomeOf(err error) string {
	switch types.CodeOf(err) {
	case types.ErrValidation:
		return "validation_error"
	case types.ErrStorage, types.ErrIndexUnavailable:
		return "storage_error"
	case types.ErrToolNotFound:
		return "not_found"
	case types.ErrRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}
