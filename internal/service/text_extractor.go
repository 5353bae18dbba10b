package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TextExtractor pulls plain text out of an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

var ErrExtractorMissing = errors.New("pdftotext is not installed")

// PdfToTextExtractor shells out to poppler's pdftotext. Pages are
// prefixed with "[page N]" so generated questions can cite them.
type PdfToTextExtractor struct {
	Binary  string
	Timeout time.Duration
}

func NewPdfToTextExtractor(binary string, timeout time.Duration) *PdfToTextExtractor {
	if binary == "" {
		binary = "pdftotext"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PdfToTextExtractor{Binary: binary, Timeout: timeout}
}

func (e *PdfToTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if _, err := exec.LookPath(e.Binary); err != nil {
		return "", ErrExtractorMissing
	}

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Binary, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w; out=%s", err, strings.TrimSpace(stderr.String()))
	}
	return markPages(string(out)), nil
}

// markPages turns pdftotext's form-feed page breaks into page markers.
func markPages(text string) string {
	pages := strings.Split(text, "\f")
	var b strings.Builder
	n := 0
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" {
			n++
			continue
		}
		n++
		fmt.Fprintf(&b, "[page %d]\n%s\n\n", n, p)
	}
	return strings.TrimSpace(b.String())
}
