package repository

import (
	"context"
	"tutorhub_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

// ChildIDs lists the students linked to a parent account.
func (r *UserRepository) ChildIDs(ctx context.Context, parentID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("parent_id = ? AND role = ?", parentID, model.Student).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) IsParentOf(ctx context.Context, parentID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND parent_id = ?", studentID, parentID).
		Count(&count).Error
	return count > 0, err
}
