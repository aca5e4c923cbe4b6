package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"indiflow/internal/config"
	"indiflow/internal/storage"
)

// StorageEntry is one key of the flow store. Revision grows on every write
// and is informational only; writes stay last-writer-wins.
type StorageEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:191" json:"key"`
	Value     []byte    `gorm:"column:value;type:longblob" json:"value"`
	Revision  int64     `gorm:"column:revision;not null;default:1" json:"revision"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (StorageEntry) TableName() string {
	return "storage_entries"
}

// GormKV stores entries in a relational table through gorm.
type GormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

// OpenMySQL connects, pings and migrates the storage table.
func OpenMySQL(cfg *config.Config, log *zap.Logger) (*GormKV, error) {
	level := logger.Warn
	if cfg.Log.Level == "debug" {
		level = logger.Info
	}
	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connected", zap.String("driver", "mysql"), zap.String("database", cfg.Database.Database))

	kv := NewGormKV(db)
	if err := kv.AutoMigrate(); err != nil {
		return nil, err
	}
	log.Info("database migration completed")
	return kv, nil
}

func (g *GormKV) AutoMigrate() error {
	if err := g.db.AutoMigrate(&StorageEntry{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (g *GormKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry StorageEntry
	err := g.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return entry.Value, nil
}

func (g *GormKV) Set(ctx context.Context, key string, value []byte) error {
	entry := StorageEntry{Key: key, Value: value, Revision: 1, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": entry.UpdatedAt,
		}),
	}).Create(&entry).Error
}

func (g *GormKV) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&StorageEntry{}).Error
}

// Revision reports how many times key has been written, 0 when absent.
func (g *GormKV) Revision(ctx context.Context, key string) (int64, error) {
	var entry StorageEntry
	err := g.db.WithContext(ctx).Select("revision").Where("entry_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return entry.Revision, err
}

func (g *GormKV) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
