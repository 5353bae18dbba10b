package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxExtractedChars caps the text kept per document.
const maxExtractedChars = 200000

type UploadRequest struct {
	Filename     string
	DeclaredType string
	Size         int64
	Body         io.Reader
}

type DocumentService struct {
	Repo      *repository.DocumentRepository
	Storage   StorageProvider
	Extractor TextExtractor
	Config    config.UploadConfig
}

func NewDocumentService(repo *repository.DocumentRepository, storage StorageProvider, extractor TextExtractor, cfg config.UploadConfig) *DocumentService {
	return &DocumentService{Repo: repo, Storage: storage, Extractor: extractor, Config: cfg}
}

// Upload validates a source document, stores it and extracts its text.
// Nothing is stored when validation fails. Extraction is best effort: a
// failure is recorded on the document and the upload still succeeds.
func (s *DocumentService) Upload(ctx context.Context, actor Actor, req UploadRequest) (*model.Document, error) {
	if actor.Role != model.Tutor && !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}

	data, err := s.validate(req)
	if err != nil {
		monitoring.DocumentUploads.WithLabelValues("rejected").Inc()
		return nil, err
	}

	doc := &model.Document{
		ID:       model.NewID(),
		OwnerID:  actor.ID,
		Filename: path.Base(strings.ReplaceAll(req.Filename, "\\", "/")),
		MimeType: util.MimePDF,
		Size:     int64(len(data)),
	}
	doc.ObjectKey = fmt.Sprintf("documents/%s/%s.pdf", time.Now().UTC().Format("2006/01/02"), doc.ID)

	url, err := s.Storage.Put(ctx, doc.ObjectKey, bytes.NewReader(data), doc.Size, doc.MimeType)
	if err != nil {
		monitoring.DocumentUploads.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("store document: %w", err)
	}
	doc.URL = url

	text, err := s.Extractor.Extract(ctx, data)
	if err != nil {
		logger.Log.Warn("Text extraction failed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		doc.ExtractionError = truncateRunes(err.Error(), 500)
	} else {
		doc.ExtractedText = truncateRunes(text, maxExtractedChars)
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Storage.Delete(context.WithoutCancel(ctx), doc.ObjectKey); delErr != nil {
			logger.Log.Error("Failed to remove orphaned document object",
				zap.String("key", doc.ObjectKey),
				zap.Error(delErr))
		}
		monitoring.DocumentUploads.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("save document: %w", err)
	}

	monitoring.DocumentUploads.WithLabelValues("ok").Inc()
	logger.Log.Info("Document uploaded",
		zap.String("document_id", doc.ID),
		zap.Uint("owner_id", actor.ID),
		zap.Int64("size", doc.Size),
		zap.Int("text_chars", len(doc.ExtractedText)))
	return doc, nil
}

func (s *DocumentService) validate(req UploadRequest) ([]byte, error) {
	if req.Body == nil {
		return nil, util.NewValidationError("file", "file is required")
	}
	if req.DeclaredType != "" && !util.SameMimeType(req.DeclaredType, util.MimePDF) {
		return nil, util.NewValidationError("file", "only PDF documents are accepted, got %s", req.DeclaredType)
	}
	if req.Size > s.Config.MaxBytes {
		return nil, util.NewValidationError("file", "file exceeds the %d byte limit", s.Config.MaxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, s.Config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, util.NewValidationError("file", "file is empty")
	}
	if int64(len(data)) > s.Config.MaxBytes {
		return nil, util.NewValidationError("file", "file exceeds the %d byte limit", s.Config.MaxBytes)
	}

	sniffed, err := util.SniffMimeType(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detect file type: %w", err)
	}
	if !util.SameMimeType(sniffed, util.MimePDF) {
		return nil, util.NewValidationError("file", "file content is %s, not a PDF", sniffed)
	}
	return data, nil
}

// Get returns a document visible to actor.
func (s *DocumentService) Get(ctx context.Context, actor Actor, id string) (*model.Document, error) {
	doc, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	return doc, nil
}
