// Package store persists completed records as timestamped JSON documents
// and keeps an optional embedded index of everything written.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/record"
	"github.com/BaSui01/intake/types"
)

// timestampLayout 生成文件名中的 YYYYMMDD_HHMMSS 段。
const timestampLayout = "20060102_150405"

// Writer persists one record and returns the absolute path written.
type Writer interface {
	Write(ctx context.Context, rec *types.Record) (string, error)
}

// FileWriter writes records under a data root, one directory per record
// family. Writes are atomic (temp file + rename); a half-written file is
// never visible to other processes.
type FileWriter struct {
	root       string
	clock      Clock
	logger     *zap.Logger
	uuidSuffix bool
}

// WriterOption configures a FileWriter.
type WriterOption func(*FileWriter)

// WithClock substitutes the clock used for timestamps and filenames.
func WithClock(c Clock) WriterOption {
	return func(w *FileWriter) { w.clock = c }
}

// WithUUIDSuffix appends a short random suffix to filenames so two
// records for the same identifier within the same second cannot
// overwrite each other. Off by default: the stock naming scheme accepts
// the same-second collision.
func WithUUIDSuffix(enabled bool) WriterOption {
	return func(w *FileWriter) { w.uuidSuffix = enabled }
}

// NewFileWriter creates a writer rooted at root. The root itself is not
// created until the first write of each record family.
func NewFileWriter(root string, logger *zap.Logger, opts ...WriterOption) *FileWriter {
	w := &FileWriter{
		root:   root,
		clock:  SystemClock(),
		logger: logger.With(zap.String("component", "store")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write serializes rec and stores it under the directory of its record
// family, creating the directory if missing. The filename is
// {prefix}_{YYYYMMDD}_{HHMMSS}_{identifier_with_underscores}.json. The
// record content is logged at info level. Errors propagate uncaught; no
// retry is attempted here.
func (w *FileWriter) Write(ctx context.Context, rec *types.Record) (string, error) {
	schema, err := record.SchemaFor(rec.Kind)
	if err != nil {
		return "", types.NewErrorf(types.ErrValidation, "unknown record kind %q", rec.Kind).WithCause(err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = w.clock.Now()
	}

	dir := filepath.Join(w.root, schema.Dir)
	// MkdirAll 幂等且并发安全：目录已存在时不报错
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", types.NewErrorf(types.ErrStorage, "create directory %s", dir).WithCause(err)
	}

	identifier := strings.ReplaceAll(rec.Identifier(schema.IdentifierKey()), " ", "_")
	name := fmt.Sprintf("%s_%s_%s", schema.Prefix, rec.CreatedAt.Format(timestampLayout), identifier)
	if w.uuidSuffix {
		name = fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", types.NewError(types.ErrStorage, "marshal record").WithCause(err)
	}

	if err := writeAtomic(dir, path, data); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w.logger.Info("record saved",
		zap.String("kind", string(rec.Kind)),
		zap.String("path", abs),
		zap.ByteString("record", data),
	)

	return abs, nil
}

// writeAtomic writes data to a temp file in dir and renames it onto
// path. Rename within one directory is atomic on POSIX filesystems.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".intake-*.tmp")
	if err != nil {
		return types.NewError(types.ErrStorage, "create temp file").WithCause(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewError(types.ErrStorage, "write temp file").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewError(types.ErrStorage, "close temp file").WithCause(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return types.NewError(types.ErrStorage, "chmod temp file").WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.NewErrorf(types.ErrStorage, "rename to %s", path).WithCause(err)
	}
	return nil
}
