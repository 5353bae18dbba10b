package repository

import (
	"context"
	"tutorhub_backend/internal/model"

	"gorm.io/gorm"
)

// ContentRepository stores homework, quizzes and lessons, each kind in its
// own table.
type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) WithTx(tx *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: tx}
}

func (r *ContentRepository) table(ctx context.Context, kind model.ContentKind) *gorm.DB {
	return r.DB.WithContext(ctx).Table(kind.Table()).Model(&model.ContentItem{})
}

func (r *ContentRepository) Create(ctx context.Context, item *model.ContentItem) error {
	if item.Version == 0 {
		item.Version = 1
	}
	return r.DB.WithContext(ctx).Table(item.Kind.Table()).Create(item).Error
}

func (r *ContentRepository) FindByID(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error) {
	var item model.ContentItem
	err := r.table(ctx, kind).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	item.Kind = kind
	return &item, nil
}

type ContentFilter struct {
	TutorID    *uint
	StudentIDs []uint
	Status     model.ContentStatus
	// ExcludeDraft hides drafts from students and parents.
	ExcludeDraft bool
}

func (r *ContentRepository) List(ctx context.Context, kind model.ContentKind, f ContentFilter, page, limit int) ([]model.ContentItem, int64, error) {
	if f.StudentIDs != nil && len(f.StudentIDs) == 0 {
		return []model.ContentItem{}, 0, nil
	}
	query := func() *gorm.DB {
		q := r.table(ctx, kind)
		if f.TutorID != nil {
			q = q.Where("tutor_id = ?", *f.TutorID)
		}
		if f.StudentIDs != nil {
			q = q.Where("student_id IN ?", f.StudentIDs)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.ExcludeDraft {
			q = q.Where("status <> ?", model.StatusDraft)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := query().Order("created_at desc")
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * limit).Limit(limit)
	}

	var items []model.ContentItem
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Kind = kind
	}
	return items, total, nil
}

// UpdateVersioned applies fields if the stored version still matches
// item.Version and bumps the version. It reports false when another
// writer got there first.
func (r *ContentRepository) UpdateVersioned(ctx context.Context, item *model.ContentItem, fields map[string]interface{}) (bool, error) {
	fields["version"] = gorm.Expr("version + 1")
	res := r.table(ctx, item.Kind).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	item.Version++
	return true, nil
}

// SoftDelete marks the item deleted if its version is unchanged.
func (r *ContentRepository) SoftDelete(ctx context.Context, item *model.ContentItem) (bool, error) {
	res := r.table(ctx, item.Kind).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Delete(&model.ContentItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
