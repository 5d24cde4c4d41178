package upload

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrInvalidFileType = errors.New("invalid file type")
)

const octetStream = "application/octet-stream"

// ResourceExtensions lists the file extensions accepted as resources.
var ResourceExtensions = []string{"pdf", "doc", "docx", "txt", "jpg", "jpeg", "png", "zip"}

var resourceMIMETypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"image/jpeg",
	"image/png",
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// BaseName strips the last extension from filename.
func BaseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if ext := path.Ext(name); ext != "" && ext != name {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// EffectiveMIME prefers the sniffed type and falls back to the declared one
// when sniffing was inconclusive. Parameters such as charset are dropped.
func EffectiveMIME(sniffed, declared string) string {
	m := sniffed
	if m == "" || mediaType(m) == octetStream {
		m = declared
	}
	return mediaType(m)
}

func mediaType(m string) string {
	base, _, _ := strings.Cut(m, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func checkSize(size, max int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, max)
	}
	return nil
}

// ValidateVideo accepts any video/* content up to max bytes.
func ValidateVideo(mimeType string, size, max int64) error {
	if err := checkSize(size, max); err != nil {
		return err
	}
	if !strings.HasPrefix(mediaType(mimeType), "video/") {
		return fmt.Errorf("%w: please upload a valid video file", ErrInvalidFileType)
	}
	return nil
}

// ValidateResource checks the extension allow-list and, except for zip
// archives whose reported type varies between clients, the MIME allow-list.
func ValidateResource(filename, mimeType string, size, max int64) error {
	if err := checkSize(size, max); err != nil {
		return err
	}
	ext := Extension(filename)
	allowed := false
	for _, e := range ResourceExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: please upload a PDF, DOC, DOCX, TXT, JPG, JPEG, PNG, or ZIP file", ErrInvalidFileType)
	}
	if ext == "zip" {
		return nil
	}
	mt := mediaType(mimeType)
	for _, m := range resourceMIMETypes {
		if m == mt {
			return nil
		}
	}
	return fmt.Errorf("%w: content type %q does not match a supported document or image", ErrInvalidFileType, mt)
}

// IsValidationError reports whether err rejects the file itself rather than
// reporting a storage failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrInvalidFileType)
}
