package service

import (
	"context"
	"errors"
	"strings"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SkillService struct {
	Repo      *repository.SkillRepository
	Generator *ContentGenerator
}

func NewSkillService(repo *repository.SkillRepository, generator *ContentGenerator) *SkillService {
	return &SkillService{Repo: repo, Generator: generator}
}

func (s *SkillService) List(ctx context.Context, trackID *uint) ([]model.Skill, error) {
	return s.Repo.List(ctx, trackID)
}

// Create adds a skill to the catalogue. Names are unique.
func (s *SkillService) Create(ctx context.Context, name, description string, trackID *uint) (*model.Skill, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return nil, util.NewValidationError("name", "name is required")
	}
	if len(name) > 100 {
		return nil, util.NewValidationError("name", "name is longer than 100 characters")
	}

	if _, err := s.Repo.FindByName(ctx, name); err == nil {
		return nil, util.NewValidationError("name", "skill %q already exists", name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	skill := &model.Skill{Name: name, Description: strings.TrimSpace(description), TrackID: trackID}
	if err := s.Repo.Create(ctx, skill); err != nil {
		return nil, err
	}
	return skill, nil
}

type SkillSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SkillID     *uint  `json:"skillId,omitempty"`
	// Existing is true when the catalogue already had the skill.
	Existing bool `json:"existing"`
}

// Suggest asks the generation backend for the skills of a subject. With
// create set, missing skills are added to the catalogue under trackID.
func (s *SkillService) Suggest(ctx context.Context, subject string, count int, create bool, trackID *uint) ([]SkillSuggestion, error) {
	topics, err := s.Generator.SuggestTopics(ctx, subject, count)
	if err != nil {
		return nil, err
	}

	out := make([]SkillSuggestion, 0, len(topics))
	for _, t := range topics {
		sug := SkillSuggestion{Name: t.Name, Description: t.Description}
		existing, err := s.Repo.FindByName(ctx, t.Name)
		switch {
		case err == nil:
			sug.SkillID = &existing.ID
			sug.Existing = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		case create:
			skill := &model.Skill{Name: t.Name, Description: t.Description, TrackID: trackID}
			if err := s.Repo.Create(ctx, skill); err != nil {
				return nil, err
			}
			sug.SkillID = &skill.ID
		}
		out = append(out, sug)
	}

	if create {
		logger.Log.Info("Created suggested skills",
			zap.String("subject", subject),
			zap.Int("suggested", len(out)))
	}
	return out, nil
}
