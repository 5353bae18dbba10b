package repository

import (
	"context"
	"tutorhub_backend/internal/model"

	"gorm.io/gorm"
)

type SkillRepository struct {
	DB *gorm.DB
}

func NewSkillRepository(db *gorm.DB) *SkillRepository {
	return &SkillRepository{DB: db}
}

func (r *SkillRepository) Create(ctx context.Context, skill *model.Skill) error {
	return r.DB.WithContext(ctx).Create(skill).Error
}

func (r *SkillRepository) FindByID(ctx context.Context, id uint) (*model.Skill, error) {
	var skill model.Skill
	err := r.DB.WithContext(ctx).First(&skill, id).Error
	return &skill, err
}

func (r *SkillRepository) FindByName(ctx context.Context, name string) (*model.Skill, error) {
	var skill model.Skill
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&skill).Error
	return &skill, err
}

func (r *SkillRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]model.Skill, error) {
	out := make(map[uint]model.Skill, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var skills []model.Skill
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&skills).Error; err != nil {
		return nil, err
	}
	for _, s := range skills {
		out[s.ID] = s
	}
	return out, nil
}

func (r *SkillRepository) List(ctx context.Context, trackID *uint) ([]model.Skill, error) {
	var skills []model.Skill
	q := r.DB.WithContext(ctx).Order("name asc")
	if trackID != nil {
		q = q.Where("track_id = ?", *trackID)
	}
	err := q.Find(&skills).Error
	return skills, err
}
