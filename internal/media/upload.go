package media

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"
)

// Upload is an uploaded file held in memory
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
	ModTime     time.Time
}

// Size returns the byte length of the content
func (u *Upload) Size() int64 {
	return int64(len(u.Content))
}

// Extension returns the lowercased text after the last dot of the filename
func (u *Upload) Extension() string {
	return Extension(u.Name)
}

// Reader returns a fresh reader over the content
func (u *Upload) Reader() io.Reader {
	return bytes.NewReader(u.Content)
}

// Extension returns the lowercased part of name after its last dot.
// A name without a dot yields the whole name, lowercased.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	return strings.ToLower(name[i+1:])
}

// FromFileHeader reads a multipart file into an Upload.
// limit caps the number of bytes read; zero means no cap.
func FromFileHeader(fh *multipart.FileHeader, limit int64) (*Upload, error) {
	if limit > 0 && fh.Size > limit {
		return nil, &Error{Kind: KindFileTooLarge, Message: fmt.Sprintf("Uploaded file exceeds %d bytes.", limit)}
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &Upload{
		Name:        filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}
