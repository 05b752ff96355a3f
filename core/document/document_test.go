package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	long := strings.Repeat("a", 120)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "notes.pdf", want: "notes.pdf"},
		{name: "spaces and brackets", in: "Chapter 1 (draft).txt", want: "Chapter_1_draft_.txt"},
		{name: "path traversal", in: "../../etc/passwd", want: "passwd"},
		{name: "windows path", in: `C:\Users\hero\cours.docx`, want: "cours.docx"},
		{name: "hidden file", in: ".env", want: "env"},
		{name: "unicode", in: "leçon été.pdf", want: "le_on_t_.pdf"},
		{name: "nothing left", in: "???", want: "file"},
		{name: "too long keeps extension", in: long + ".pdf", want: long[:96] + ".pdf"},
		{name: "too long without extension", in: long, want: long[:100]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestObjectPath(t *testing.T) {
	now := time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC)
	p := ObjectPath("owner-id", "My Slides.pptx", now)
	assert.True(t, strings.HasPrefix(p, "owner-id/20260504-"), p)
	assert.True(t, strings.HasSuffix(p, "-My_Slides.pptx"), p)
	assert.NotEqual(t, p, ObjectPath("owner-id", "My Slides.pptx", now))
}
