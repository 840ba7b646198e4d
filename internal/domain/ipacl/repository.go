package ipacl

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrRuleNotFound = errors.New("access rule not found")
	ErrRuleExists   = errors.New("access rule already exists")
)

type Repository interface {
	Create(ctx context.Context, rule *AccessRule) error
	GetByID(ctx context.Context, id uint) (*AccessRule, error)
	ListAll(ctx context.Context) ([]*AccessRule, error)
	ListActive(ctx context.Context) ([]*AccessRule, error)
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rule *AccessRule) error {
	err := r.db.WithContext(ctx).Create(rule).Error
	if err != nil {
		msg := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
			return ErrRuleExists
		}
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id uint) (*AccessRule, error) {
	var rule AccessRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRuleNotFound
	}
	return &rule, err
}

func (r *repository) ListAll(ctx context.Context) ([]*AccessRule, error) {
	var rules []*AccessRule
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rules).Error
	return rules, err
}

func (r *repository) ListActive(ctx context.Context) ([]*AccessRule, error) {
	var rules []*AccessRule
	err := r.db.WithContext(ctx).Where("active = ?", true).Find(&rules).Error
	return rules, err
}

func (r *repository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&AccessRule{}).Where("id = ?", id).
		UpdateColumn("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&AccessRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
