// Package upload validates files sent by the editor and streams them to the
// blob store under the program's folder.
package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"meditation/internal/model"
	"meditation/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// File is a single uploaded file.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.ReadSeeker
}

// Result describes a stored object.
type Result struct {
	Key         string
	URL         string
	ContentType string
}

type Uploader struct {
	store           storage.BlobStore
	maxVideoSize    int64
	maxResourceSize int64
	now             func() time.Time
	logger          zerolog.Logger
}

func NewUploader(store storage.BlobStore, maxVideoSize, maxResourceSize int64, logger zerolog.Logger) *Uploader {
	return &Uploader{
		store:           store,
		maxVideoSize:    maxVideoSize,
		maxResourceSize: maxResourceSize,
		now:             time.Now,
		logger:          logger.With().Str("component", "Uploader").Logger(),
	}
}

// Sniff detects the content type from the first bytes of body and rewinds it.
func Sniff(body io.ReadSeeker) (string, error) {
	mt, err := mimetype.DetectReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind upload: %w", err)
	}
	return mt.String(), nil
}

// UploadVideo validates and stores a video under folder (storage.ProgramPrefix
// or storage.DraftPrefix).
func (u *Uploader) UploadVideo(ctx context.Context, folder string, f File, progress storage.ProgressFunc) (*Result, error) {
	sniffed, err := Sniff(f.Body)
	if err != nil {
		return nil, err
	}
	mt := EffectiveMIME(sniffed, f.ContentType)
	if err := ValidateVideo(mt, f.Size, u.maxVideoSize); err != nil {
		u.logger.Warn().Err(err).Str("filename", f.Name).Str("mime", mt).Msg("Rejected video upload")
		return nil, err
	}
	return u.put(ctx, storage.VideoKey(folder, f.Name, u.now()), mt, f, progress)
}

// UploadResource validates and stores a resource. An empty pageID stores it
// at program scope.
func (u *Uploader) UploadResource(ctx context.Context, folder, pageID string, f File, progress storage.ProgressFunc) (*Result, error) {
	sniffed, err := Sniff(f.Body)
	if err != nil {
		return nil, err
	}
	mt := EffectiveMIME(sniffed, f.ContentType)
	if err := ValidateResource(f.Name, mt, f.Size, u.maxResourceSize); err != nil {
		u.logger.Warn().Err(err).Str("filename", f.Name).Str("mime", mt).Msg("Rejected resource upload")
		return nil, err
	}
	key := storage.ProgramResourceKey(folder, f.Name, u.now())
	if pageID != "" {
		key = storage.PageResourceKey(folder, pageID, f.Name, u.now())
	}
	return u.put(ctx, key, mt, f, progress)
}

func (u *Uploader) put(ctx context.Context, key, contentType string, f File, progress storage.ProgressFunc) (*Result, error) {
	url, err := u.store.Upload(ctx, key, f.Body, f.Size, contentType, progress)
	if err != nil {
		return nil, err
	}
	return &Result{Key: key, URL: url, ContentType: contentType}, nil
}

// ResourceFor builds the resource entry for an uploaded file. The display
// name defaults to the file name without its extension.
func ResourceFor(displayName, filename, url string) model.Resource {
	if displayName == "" {
		displayName = BaseName(filename)
	}
	return model.NewResource(displayName, url)
}
