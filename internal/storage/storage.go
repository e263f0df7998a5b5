// Package storage persists accepted avatars and attachments.
package storage

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/google/uuid"
)

// Upload directories, mirroring the stored reference prefix
const (
	AvatarsDir = "avatars"
	FilesDir   = "files"
)

// Storage saves uploads under a name and resolves names to public URLs
type Storage interface {
	Save(ctx context.Context, name string, upload *media.Upload) error
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds a unique storage name that keeps the original filename,
// e.g. files/<uuid>/report.txt
func ObjectName(dir, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return path.Join(dir, uuid.NewString(), base)
}

func joinURL(base, name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(name, "/")
}
