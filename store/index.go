package store

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/intake/types"
)

// IndexEntry is one row of the record ledger: which record was written,
// for whom, and where. The JSON document on disk stays the source of
// truth; the index only exists so operators can find records without
// walking directories.
type IndexEntry struct {
	ID         uint       `gorm:"primaryKey"`
	Kind       string     `gorm:"index;size:32"`
	Identifier string     `gorm:"index;size:255"`
	Path       string     `gorm:"size:1024"`
	CreatedAt  time.Time  `gorm:"index"`
}

// TableName keeps the ledger table name explicit.
func (IndexEntry) TableName() string { return "record_index" }

// Index is an embedded sqlite ledger of written records.
type Index struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewIndex wraps an existing gorm DB and migrates the ledger table.
func NewIndex(db *gorm.DB, logger *zap.Logger) (*Index, error) {
	if err := db.AutoMigrate(&IndexEntry{}); err != nil {
		return nil, types.NewError(types.ErrIndexUnavailable, "migrate record index").WithCause(err)
	}
	return &Index{
		db:     db,
		logger: logger.With(zap.String("component", "index")),
	}, nil
}

// OpenIndex opens (or creates) the sqlite ledger at path.
func OpenIndex(path string, logger *zap.Logger) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewErrorf(types.ErrIndexUnavailable, "open index %s", path).WithCause(err)
	}
	return NewIndex(db, logger)
}

// Add records one written file in the ledger.
func (ix *Index) Add(ctx context.Context, rec *types.Record, identifier, path string) error {
	entry := IndexEntry{
		Kind:       string(rec.Kind),
		Identifier: identifier,
		Path:       path,
		CreatedAt:  rec.CreatedAt,
	}
	if err := ix.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return types.NewError(types.ErrIndexUnavailable, "insert index entry").WithCause(err)
	}
	ix.logger.Debug("index entry added",
		zap.String("kind", entry.Kind),
		zap.String("identifier", entry.Identifier),
	)
	return nil
}

// ByIdentifier returns the most recent entries for a human identifier.
func (ix *Index) ByIdentifier(ctx context.Context, identifier string, limit int) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := ix.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, types.NewError(types.ErrIndexUnavailable, "query by identifier").WithCause(err)
	}
	return entries, nil
}

// ByKind returns the most recent entries of one record kind.
func (ix *Index) ByKind(ctx context.Context, kind types.RecordKind, limit int) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := ix.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, types.NewError(types.ErrIndexUnavailable, "query by kind").WithCause(err)
	}
	return entries, nil
}

// Close releases the underlying database connection.
func (ix *Index) Close() error {
	db, err := ix.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Recent returns the most recent entries across all kinds.
func (ix *Index) Recent(ctx context.Context, limit int) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := ix.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, types.NewError(types.ErrIndexUnavailable, "query recent").WithCause(err)
	}
	return entries, nil
}
