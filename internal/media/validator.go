// Package media validates and normalizes comment attachments and avatars.
package media

import (
	"fmt"
	"slices"
	"strings"
)

// MaxTextFileSize is the largest accepted .txt attachment, in bytes
const MaxTextFileSize = 100 * 1024

// ImageExtensions are the formats accepted for avatars and image attachments
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif"}

// ExtensionAllowList rejects uploads whose extension is not listed.
type ExtensionAllowList struct {
	allowed []string
}

// NewExtensionAllowList builds an allow-list. An empty list falls back to
// ImageExtensions.
func NewExtensionAllowList(allowed []string) *ExtensionAllowList {
	if len(allowed) == 0 {
		allowed = ImageExtensions
	}
	normalized := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			normalized = append(normalized, ext)
		}
	}
	return &ExtensionAllowList{allowed: normalized}
}

// Allowed returns a copy of the configured extensions
func (l *ExtensionAllowList) Allowed() []string {
	return append([]string(nil), l.allowed...)
}

// Check fails with an UnsupportedFileType error when the extension of name
// is not on the list.
func (l *ExtensionAllowList) Check(name string) error {
	if !slices.Contains(l.allowed, Extension(name)) {
		return unsupported(l.allowed)
	}
	return nil
}

// ValidateFile accepts a text file of at most MaxTextFileSize bytes or an
// image, which is normalized to FileBox.
func ValidateFile(u *Upload) (*Upload, error) {
	ext := u.Extension()
	switch {
	case ext == "txt":
		if u.Size() > MaxTextFileSize {
			return nil, &Error{
				Kind:    KindFileTooLarge,
				Message: fmt.Sprintf("Text file size should not exceed %dKB.", MaxTextFileSize/1024),
			}
		}
		return u, nil
	case slices.Contains(ImageExtensions, ext):
		return NormalizeImage(u, FileBox)
	default:
		return nil, unsupported(ImageExtensions)
	}
}

// ValidateAvatar accepts images only and normalizes them to AvatarBox.
func ValidateAvatar(u *Upload) (*Upload, error) {
	if !slices.Contains(ImageExtensions, u.Extension()) {
		return nil, unsupported(ImageExtensions)
	}
	return NormalizeImage(u, AvatarBox)
}
