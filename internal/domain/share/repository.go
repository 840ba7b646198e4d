package share

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, rec *FileRecord) error
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	GetByExtractCode(ctx context.Context, code string) (*FileRecord, error)
	GetByDeleteCode(ctx context.Context, code string) (*FileRecord, error)
	ClaimDownload(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*FileRecord, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *FileRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*FileRecord, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *repository) GetByExtractCode(ctx context.Context, code string) (*FileRecord, error) {
	return r.getBy(ctx, "extract_code = ?", code)
}

func (r *repository) GetByDeleteCode(ctx context.Context, code string) (*FileRecord, error) {
	return r.getBy(ctx, "delete_code = ?", code)
}

func (r *repository) getBy(ctx context.Context, query string, arg any) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// ClaimDownload consumes one download slot and returns the new count.
// The guarded single-row UPDATE is the only mutation that needs
// cross-caller atomicity: of N callers racing on the last slot, exactly
// one gets it, the rest see ErrExhausted. Claims on different records
// never contend with each other.
func (r *repository) ClaimDownload(ctx context.Context, id string) (int, error) {
	var newCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&FileRecord{}).
			Where("id = ? AND download_count < max_downloads", id).
			UpdateColumn("download_count", gorm.Expr("download_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var rec FileRecord
			if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			return ErrExhausted
		}
		var rec FileRecord
		if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
			return err
		}
		newCount = rec.DownloadCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&FileRecord{}).Error
}

func (r *repository) ListAll(ctx context.Context) ([]*FileRecord, error) {
	var recs []*FileRecord
	err := r.db.WithContext(ctx).Find(&recs).Error
	return recs, err
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&FileRecord{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation matches the sqlite and postgres wordings since
// Connect does not enable gorm error translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
