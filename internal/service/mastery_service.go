package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxUpsertAttempts bounds the compare-and-swap loop under contention.
const maxUpsertAttempts = 5

type MasteryService struct {
	Repo      *repository.MasteryRepository
	SkillRepo *repository.SkillRepository
	Decay     *DecaySettings
}

func NewMasteryService(repo *repository.MasteryRepository, skillRepo *repository.SkillRepository, decay *DecaySettings) *MasteryService {
	return &MasteryService{Repo: repo, SkillRepo: skillRepo, Decay: decay}
}

// Get returns the stored record, or a zero record when the student has
// never been assessed on the skill.
func (s *MasteryService) Get(ctx context.Context, studentID, skillID uint) (*model.MasteryRecord, error) {
	rec, err := s.Repo.Find(ctx, studentID, skillID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.MasteryRecord{StudentID: studentID, SkillID: skillID}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert records an observation. Writes are last-write-wins by observedAt:
// an observation older than the stored one is discarded and applied is
// false.
func (s *MasteryService) Upsert(ctx context.Context, studentID, skillID uint, mastery float64, observedAt time.Time) (bool, error) {
	return s.upsert(ctx, s.Repo, studentID, skillID, mastery, observedAt)
}

// UpsertTx is Upsert inside the caller's transaction.
func (s *MasteryService) UpsertTx(ctx context.Context, tx *gorm.DB, studentID, skillID uint, mastery float64, observedAt time.Time) (bool, error) {
	return s.upsert(ctx, s.Repo.WithTx(tx), studentID, skillID, mastery, observedAt)
}

func (s *MasteryService) upsert(ctx context.Context, repo *repository.MasteryRepository, studentID, skillID uint, mastery float64, observedAt time.Time) (bool, error) {
	if studentID == 0 || skillID == 0 {
		return false, util.NewValidationError("mastery", "student and skill are required")
	}
	if observedAt.IsZero() {
		return false, util.NewValidationError("observedAt", "observation time is required")
	}
	observedAt = observedAt.UTC()
	mastery = model.ClampMastery(mastery)

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		rec, err := repo.Find(ctx, studentID, skillID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			inserted, err := repo.Insert(ctx, &model.MasteryRecord{
				StudentID:     studentID,
				SkillID:       skillID,
				MasteryLevel:  mastery,
				LastAssessed:  &observedAt,
				LastDecayedAt: &observedAt,
			})
			if err != nil {
				return false, fmt.Errorf("insert mastery record: %w", err)
			}
			if inserted {
				return true, nil
			}
			// lost the insert race; retry against the winner's row
			continue
		}
		if err != nil {
			return false, err
		}

		if rec.LastAssessed != nil && observedAt.Before(*rec.LastAssessed) {
			logger.Log.Debug("Discarding stale mastery observation",
				zap.Uint("student_id", studentID),
				zap.Uint("skill_id", skillID),
				zap.Time("observed_at", observedAt),
				zap.Time("last_assessed", *rec.LastAssessed))
			return false, nil
		}

		rec.MasteryLevel = mastery
		rec.LastAssessed = &observedAt
		rec.LastDecayedAt = &observedAt
		ok, err := repo.CompareAndSwap(ctx, rec)
		if err != nil {
			return false, fmt.Errorf("update mastery record: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, util.ErrConcurrentUpdate
}

// MasteryView is a record with pending decay applied.
type MasteryView struct {
	SkillID       uint       `json:"skillId"`
	SkillName     string     `json:"skillName"`
	Mastery       float64    `json:"mastery"`
	StoredMastery float64    `json:"storedMastery"`
	LastAssessed  *time.Time `json:"lastAssessed"`
}

// GetProjected is Get with decay up to now applied, the value the
// selector ranks on.
func (s *MasteryService) GetProjected(ctx context.Context, studentID, skillID uint, now time.Time) (*MasteryView, error) {
	rec, err := s.Get(ctx, studentID, skillID)
	if err != nil {
		return nil, err
	}
	value, _ := s.Decay.Load().Project(rec, now)
	return &MasteryView{
		SkillID:       skillID,
		Mastery:       value,
		StoredMastery: rec.MasteryLevel,
		LastAssessed:  rec.LastAssessed,
	}, nil
}

// ListProjected returns the student's records as they stand at now,
// including decay the scheduler has not written yet.
func (s *MasteryService) ListProjected(ctx context.Context, studentID uint, now time.Time) ([]MasteryView, error) {
	recs, err := s.Repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(recs))
	for i, r := range recs {
		ids[i] = r.SkillID
	}
	skills, err := s.SkillRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	policy := s.Decay.Load()
	views := make([]MasteryView, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		skill, ok := skills[rec.SkillID]
		if !ok {
			// skill was removed from the catalogue; keep the record, skip it here
			continue
		}
		value, _ := policy.Project(rec, now)
		views = append(views, MasteryView{
			SkillID:       rec.SkillID,
			SkillName:     skill.Name,
			Mastery:       value,
			StoredMastery: rec.MasteryLevel,
			LastAssessed:  rec.LastAssessed,
		})
	}
	return views, nil
}
