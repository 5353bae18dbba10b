package repository

import (
	"context"
	"tutorhub_backend/internal/model"

	"gorm.io/gorm"
)

type DocumentRepository struct {
	DB *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.DB.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	return &doc, err
}
