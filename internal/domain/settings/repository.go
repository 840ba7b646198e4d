package settings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Upsert(ctx context.Context, key, value string) error
	All(ctx context.Context) ([]*Setting, error)
}

var ErrSettingNotFound = errors.New("setting not found")

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingNotFound
	}
	return &s, err
}

func (r *repository) Upsert(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Setting
		err := tx.Where("key = ?", key).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&s).Updates(map[string]any{
			"value":      value,
			"updated_at": time.Now(),
		}).Error
	})
}

func (r *repository) All(ctx context.Context) ([]*Setting, error) {
	var list []*Setting
	err := r.db.WithContext(ctx).Find(&list).Error
	return list, err
}
