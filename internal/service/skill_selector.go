package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/util"

	"gorm.io/gorm"
)

// masteryEpsilon treats projected values this close as equal so float
// noise from decay does not override the recency tie-break.
const masteryEpsilon = 1e-9

// SkillSelector picks the skill a student should practise next.
type SkillSelector struct {
	Mastery   *MasteryService
	SkillRepo *repository.SkillRepository

	defaults atomic.Pointer[[]string]
	now      func() time.Time
}

func NewSkillSelector(mastery *MasteryService, skillRepo *repository.SkillRepository, defaultSkills []string) *SkillSelector {
	s := &SkillSelector{Mastery: mastery, SkillRepo: skillRepo, now: time.Now}
	s.SetDefaultSkills(defaultSkills)
	return s
}

// SetDefaultSkills replaces the starter list used for unmeasured students.
func (s *SkillSelector) SetDefaultSkills(names []string) {
	cp := append([]string(nil), names...)
	s.defaults.Store(&cp)
}

func (s *SkillSelector) DefaultSkills() []string {
	return *s.defaults.Load()
}

// Rank orders the student's skills weakest first: ascending projected
// mastery, then most recently assessed first with never-assessed last,
// then skill id.
func (s *SkillSelector) Rank(ctx context.Context, studentID uint) ([]MasteryView, error) {
	views, err := s.Mastery.ListProjected(ctx, studentID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if math.Abs(a.Mastery-b.Mastery) > masteryEpsilon {
			return a.Mastery < b.Mastery
		}
		switch {
		case a.LastAssessed != nil && b.LastAssessed == nil:
			return true
		case a.LastAssessed == nil && b.LastAssessed != nil:
			return false
		case a.LastAssessed != nil && b.LastAssessed != nil && !a.LastAssessed.Equal(*b.LastAssessed):
			return a.LastAssessed.After(*b.LastAssessed)
		}
		return a.SkillID < b.SkillID
	})
	return views, nil
}

// Select returns explicitSkillID when given. Otherwise it returns the top
// of Rank, or the first starter skill that exists when the student has no
// records.
func (s *SkillSelector) Select(ctx context.Context, studentID uint, explicitSkillID *uint) (*model.Skill, error) {
	if explicitSkillID != nil {
		skill, err := s.SkillRepo.FindByID(ctx, *explicitSkillID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewValidationError("skillId", "skill %d does not exist", *explicitSkillID)
		}
		return skill, err
	}

	ranked, err := s.Rank(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(ranked) > 0 {
		return s.SkillRepo.FindByID(ctx, ranked[0].SkillID)
	}

	for _, name := range s.DefaultSkills() {
		skill, err := s.SkillRepo.FindByName(ctx, strings.TrimSpace(name))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return skill, nil
	}
	return nil, util.ErrNoSkillAvailable
}

// Standing reports the student's projected mastery of skill, measured at
// the same instant Rank uses.
func (s *SkillSelector) Standing(ctx context.Context, studentID uint, skill *model.Skill) (*MasteryView, error) {
	view, err := s.Mastery.GetProjected(ctx, studentID, skill.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	view.SkillName = skill.Name
	return view, nil
}
