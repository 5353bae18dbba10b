package repository

import (
	"context"
	"time"
	"tutorhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MasteryRepository struct {
	DB *gorm.DB
}

func NewMasteryRepository(db *gorm.DB) *MasteryRepository {
	return &MasteryRepository{DB: db}
}

// WithTx returns a repository bound to tx.
func (r *MasteryRepository) WithTx(tx *gorm.DB) *MasteryRepository {
	return &MasteryRepository{DB: tx}
}

func (r *MasteryRepository) Find(ctx context.Context, studentID, skillID uint) (*model.MasteryRecord, error) {
	var rec model.MasteryRecord
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND skill_id = ?", studentID, skillID).
		First(&rec).Error
	return &rec, err
}

func (r *MasteryRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.MasteryRecord, error) {
	var recs []model.MasteryRecord
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("skill_id asc").
		Find(&recs).Error
	return recs, err
}

// Insert creates rec unless a row for the pair exists. It reports whether
// the row was written.
func (r *MasteryRepository) Insert(ctx context.Context, rec *model.MasteryRecord) (bool, error) {
	rec.Revision = 1
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompareAndSwap writes the value fields of rec if the stored revision is
// still rec.Revision. On success rec.Revision is advanced.
func (r *MasteryRepository) CompareAndSwap(ctx context.Context, rec *model.MasteryRecord) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.MasteryRecord{}).
		Where("id = ? AND revision = ?", rec.ID, rec.Revision).
		Updates(map[string]interface{}{
			"mastery_level":   rec.MasteryLevel,
			"last_assessed":   rec.LastAssessed,
			"last_decayed_at": rec.LastDecayedAt,
			"revision":        gorm.Expr("revision + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	rec.Revision++
	return true, nil
}

// ListDecayCandidates pages by id over records assessed at or before
// cutoff whose value is above floor.
func (r *MasteryRepository) ListDecayCandidates(ctx context.Context, cutoff time.Time, floor float64, afterID uint, limit int) ([]model.MasteryRecord, error) {
	var recs []model.MasteryRecord
	err := r.DB.WithContext(ctx).
		Where("last_assessed IS NOT NULL AND last_assessed <= ? AND mastery_level > ? AND id > ?", cutoff, floor, afterID).
		Order("id asc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// RecordObservation inserts the idempotency row for a completion and
// reports whether it was new.
func (r *MasteryRepository) RecordObservation(ctx context.Context, obs *model.MasteryObservation) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(obs)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *MasteryRepository) CountObservations(ctx context.Context, kind model.ContentKind, contentID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.MasteryObservation{}).
		Where("content_kind = ? AND content_id = ?", kind, contentID).
		Count(&count).Error
	return count, err
}
