package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/testutil"
	"tutorhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if m.failPut != nil {
		return "", m.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.URL(key), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) URL(key string) string { return "mem://" + key }

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte) (string, error) {
	return s.text, s.err
}

func newDocumentFixture(t *testing.T, ex TextExtractor) (*DocumentService, *memStorage, *model.User) {
	db := testutil.NewDB(t)
	store := newMemStorage()
	svc := NewDocumentService(repository.NewDocumentRepository(db), store, ex, config.UploadConfig{MaxBytes: 1024})
	return svc, store, testutil.CreateUser(t, db, model.Tutor, nil)
}

func pdfUpload(data []byte) UploadRequest {
	return UploadRequest{
		Filename:     "worksheet.pdf",
		DeclaredType: "application/pdf",
		Size:         int64(len(data)),
		Body:         bytes.NewReader(data),
	}
}

func TestUploadStoresPDFAndText(t *testing.T) {
	svc, store, tutor := newDocumentFixture(t, stubExtractor{text: "[page 1]\nFractions"})
	ctx := context.Background()

	doc, err := svc.Upload(ctx, actorOf(tutor), pdfUpload(samplePDF))
	require.NoError(t, err)
	assert.Equal(t, "worksheet.pdf", doc.Filename)
	assert.Equal(t, util.MimePDF, doc.MimeType)
	assert.Equal(t, "[page 1]\nFractions", doc.ExtractedText)
	assert.Empty(t, doc.ExtractionError)
	assert.True(t, strings.HasPrefix(doc.ObjectKey, "documents/"))
	assert.Equal(t, samplePDF, store.objects[doc.ObjectKey])

	got, err := svc.Get(ctx, actorOf(tutor), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ExtractedText, got.ExtractedText)

	_, err = svc.Get(ctx, Actor{ID: tutor.ID + 100, Role: model.Tutor}, doc.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = svc.Get(ctx, actorOf(tutor), "missing")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestUploadRejectsBeforeStoring(t *testing.T) {
	svc, store, tutor := newDocumentFixture(t, stubExtractor{})
	ctx := context.Background()

	cases := map[string]UploadRequest{
		"declared image": {Filename: "a.png", DeclaredType: "image/png", Size: 3, Body: bytes.NewReader([]byte("png"))},
		"empty":          pdfUpload(nil),
		"oversize":       pdfUpload(append(append([]byte{}, samplePDF...), make([]byte, 2048)...)),
		"not really pdf": {Filename: "a.pdf", DeclaredType: "application/pdf", Size: 11, Body: bytes.NewReader([]byte("hello world"))},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Upload(ctx, actorOf(tutor), req)
			assert.True(t, util.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, store.objects)
}

func TestUploadUnderreportedSizeIsStillBounded(t *testing.T) {
	svc, store, tutor := newDocumentFixture(t, stubExtractor{})

	data := append(append([]byte{}, samplePDF...), make([]byte, 2048)...)
	req := pdfUpload(data)
	req.Size = 10

	_, err := svc.Upload(context.Background(), actorOf(tutor), req)
	assert.True(t, util.IsValidation(err))
	assert.Empty(t, store.objects)
}

func TestUploadSucceedsWhenExtractionFails(t *testing.T) {
	svc, _, tutor := newDocumentFixture(t, stubExtractor{err: ErrExtractorMissing})

	doc, err := svc.Upload(context.Background(), actorOf(tutor), pdfUpload(samplePDF))
	require.NoError(t, err)
	assert.Empty(t, doc.ExtractedText)
	assert.Equal(t, ErrExtractorMissing.Error(), doc.ExtractionError)
}

func TestUploadStorageFailure(t *testing.T) {
	svc, store, tutor := newDocumentFixture(t, stubExtractor{})
	store.failPut = errors.New("bucket gone")

	_, err := svc.Upload(context.Background(), actorOf(tutor), pdfUpload(samplePDF))
	require.Error(t, err)
	assert.False(t, util.IsValidation(err))
}

func TestUploadRequiresTutor(t *testing.T) {
	svc, store, _ := newDocumentFixture(t, stubExtractor{})

	_, err := svc.Upload(context.Background(), Actor{ID: 1, Role: model.Student}, pdfUpload(samplePDF))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	assert.Empty(t, store.objects)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	p := &LocalStorageProvider{Root: t.TempDir()}
	ctx := context.Background()

	url, err := p.Put(ctx, "documents/2024/03/01/x.pdf", bytes.NewReader(samplePDF), int64(len(samplePDF)), util.MimePDF)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/documents/2024/03/01/x.pdf", url)

	data, err := os.ReadFile(filepath.Join(p.Root, "documents", "2024", "03", "01", "x.pdf"))
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)

	require.NoError(t, p.Delete(ctx, "documents/2024/03/01/x.pdf"))
}

func TestMarkPages(t *testing.T) {
	got := markPages("first page\f\fthird page\f")
	assert.Equal(t, "[page 1]\nfirst page\n\n[page 3]\nthird page", got)
}
