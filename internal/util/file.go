package util

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffMimeType detects the content type from the leading bytes of r.
func SniffMimeType(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// SameMimeType compares media types ignoring parameters and case.
func SameMimeType(a, b string) bool {
	base := func(s string) string {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = s[:i]
		}
		return strings.ToLower(strings.TrimSpace(s))
	}
	return base(a) == base(b)
}
