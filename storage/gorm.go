package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRow is one stored snapshot in the `snapshots` table.
type SnapshotRow struct {
	Name      string    `gorm:"primaryKey;size:191"`
	Data      []byte    `gorm:"type:longblob"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (SnapshotRow) TableName() string {
	return "snapshots"
}

// GormBackend keeps snapshots in a SQL table through GORM.
type GormBackend struct {
	db     *gorm.DB
	prefix string
	now    func() time.Time
}

func NewGormBackend(db *gorm.DB, prefix string) *GormBackend {
	return &GormBackend{db: db, prefix: prefix, now: time.Now}
}

// Migrate creates or updates the snapshots table.
func (g *GormBackend) Migrate() error {
	if err := g.db.AutoMigrate(&SnapshotRow{}); err != nil {
		return fmt.Errorf("failed to migrate snapshots table: %w", err)
	}
	return nil
}

func (g *GormBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var row SnapshotRow
	err := g.db.WithContext(ctx).Where("name = ?", prefixed(g.prefix, key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return row.Data, nil
}

func (g *GormBackend) Put(ctx context.Context, key string, data []byte) error {
	row := SnapshotRow{Name: prefixed(g.prefix, key), Data: data, UpdatedAt: g.now()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).Where("name = ?", prefixed(g.prefix, key)).Delete(&SnapshotRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
