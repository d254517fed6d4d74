// Package sqlite implements sitecontent.Repository on SQLite through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// dynamicPart is the gorm model behind a slot.
type dynamicPart struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Page        string    `gorm:"not null;uniqueIndex:idx_dynamic_parts_page_key,priority:1"`
	Key         string    `gorm:"not null;uniqueIndex:idx_dynamic_parts_page_key,priority:2"`
	Title1      *string   `gorm:"column:title_1"`
	Title2      *string   `gorm:"column:title_2"`
	Image1      *string   `gorm:"column:image_1"`
	Image2      *string   `gorm:"column:image_2"`
	Description *string   `gorm:"column:description"`
	LinkTitle1  *string   `gorm:"column:link_title_1"`
	Link1       *string   `gorm:"column:link_1"`
	LinkTitle2  *string   `gorm:"column:link_title_2"`
	Link2       *string   `gorm:"column:link_2"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (dynamicPart) TableName() string { return "dynamic_parts" }

func (p *dynamicPart) toSlot() *sitecontent.Slot {
	return &sitecontent.Slot{
		ID:          p.ID,
		Page:        p.Page,
		Key:         p.Key,
		Title1:      p.Title1,
		Title2:      p.Title2,
		Image1:      p.Image1,
		Image2:      p.Image2,
		Description: p.Description,
		LinkTitle1:  p.LinkTitle1,
		Link1:       p.Link1,
		LinkTitle2:  p.LinkTitle2,
		Link2:       p.Link2,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

// Repository implements sitecontent.Repository using gorm
type Repository struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database file at path and migrates it.
// SQLite allows a single writer, so the pool is limited to one connection.
func Open(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return New(gdb)
}

// New wraps an existing gorm connection and migrates the schema.
func New(gdb *gorm.DB) (*Repository, error) {
	if err := gdb.AutoMigrate(&dynamicPart{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return &Repository{db: gdb}, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) Find(ctx context.Context, page, key string) (*sitecontent.Slot, error) {
	var row dynamicPart
	err := r.db.WithContext(ctx).
		Where(map[string]interface{}{"page": page, "key": key}).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return row.toSlot(), nil
}

func (r *Repository) Upsert(ctx context.Context, page, key string, patch sitecontent.Patch, now time.Time) (*sitecontent.Slot, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	row := dynamicPart{Page: page, Key: key, CreatedAt: now, UpdatedAt: now}
	slot := row.toSlot()
	patch.ApplyTo(slot)
	row.Title1, row.Title2 = slot.Title1, slot.Title2
	row.Image1, row.Image2 = slot.Image1, slot.Image2
	row.Description = slot.Description
	row.LinkTitle1, row.Link1 = slot.LinkTitle1, slot.Link1
	row.LinkTitle2, row.Link2 = slot.LinkTitle2, slot.Link2

	columns := make([]string, 0, len(patch))
	for _, f := range patch.Fields() {
		columns = append(columns, string(f))
	}
	updates := clause.AssignmentColumns(columns)
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "updated_at"},
		Value:  gorm.Expr("MAX(excluded.updated_at, dynamic_parts.updated_at)"),
	})

	var stored dynamicPart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page"}, {Name: "key"}},
			DoUpdates: updates,
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where(map[string]interface{}{"page": page, "key": key}).Take(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert slot: %w", err)
	}

	return stored.toSlot(), nil
}

func (r *Repository) ListPage(ctx context.Context, page string) ([]*sitecontent.Slot, error) {
	var rows []dynamicPart
	if err := r.db.WithContext(ctx).
		Where(map[string]interface{}{"page": page}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	slots := make([]*sitecontent.Slot, 0, len(rows))
	for i := range rows {
		slots = append(slots, rows[i].toSlot())
	}
	return slots, nil
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
