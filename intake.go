// Package intake provides a top-level convenience entry point for the
// structured record intake core with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/intake"
//
//	svc, err := intake.New("./data")
//	svc, err := intake.New("./data", intake.WithIndexPath("./data/index.db"))
//
//	msg, err := svc.Dispatch(ctx, "save_order", args)
//
// This is a thin wrapper around the tools and store packages; use those
// directly when you need finer control over registration or storage.
package intake

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/BaSui01/intake/store"
	"github.com/BaSui01/intake/tools"
)

// Service bundles the tool registry, executor, and optional record index
// behind one handle.
type Service struct {
	registry *tools.Registry
	executor *tools.Executor
	index    *store.Index
	logger   *zap.Logger
}

type options struct {
	logger     *zap.Logger
	uuidSuffix bool
	indexPath  string
	extraTools []*tools.Tool
}

// Option configures the service created by [New].
type Option func(*options)

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithUUIDSuffix appends a short random suffix to filenames so two saves
// for the same person within the same second never collide.
func WithUUIDSuffix() Option {
	return func(o *options) { o.uuidSuffix = true }
}

// WithIndexPath enables the sqlite record ledger at the given path.
func WithIndexPath(path string) Option {
	return func(o *options) { o.indexPath = path }
}

// WithTool registers an additional tool beyond the built-in four.
func WithTool(t *tools.Tool) Option {
	return func(o *options) { o.extraTools = append(o.extraTools, t) }
}

// New creates a Service persisting records under dataRoot, with all four
// built-in tools registered.
func New(dataRoot string, opts ...Option) (*Service, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	writer := store.NewFileWriter(dataRoot, o.logger, store.WithUUIDSuffix(o.uuidSuffix))

	registry := tools.NewRegistry(o.logger)
	for _, t := range tools.All() {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	for _, t := range o.extraTools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	var (
		index    *store.Index
		execOpts []tools.ExecutorOption
	)
	if o.indexPath != "" {
		ix, err := store.OpenIndex(o.indexPath, o.logger)
		if err != nil {
			return nil, err
		}
		index = ix
		execOpts = append(execOpts, tools.WithIndex(ix))
	}

	return &Service{
		registry: registry,
		executor: tools.NewExecutor(registry, writer, o.logger, execOpts...),
		index:    index,
		logger:   o.logger,
	}, nil
}

// Dispatch runs one named tool call and returns the confirmation message.
func (s *Service) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	return s.executor.Dispatch(ctx, name, args)
}

// Execute runs one invocation and returns the full result.
func (s *Service) Execute(ctx context.Context, inv tools.Invocation) tools.Result {
	return s.executor.Execute(ctx, inv)
}

// Executor exposes the underlying executor for session wiring.
func (s *Service) Executor() *tools.Executor {
	return s.executor
}

// Tools lists the registered tool schemas for handing to a conversational
// model.
func (s *Service) Tools() []tools.Schema {
	return s.registry.List()
}

// Index returns the record ledger, or nil when not enabled.
func (s *Service) Index() *store.Index {
	return s.index
}

// Close releases the record ledger, if any.
func (s *Service) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}
