package service

import (
	"context"
	"time"

	"meditation/internal/editor"
	"meditation/internal/model"
	"meditation/internal/repository"
	"meditation/internal/storage"
	"meditation/internal/upload"

	"github.com/rs/zerolog"
)

// DraftView is what an administrator sees of the open draft.
type DraftView struct {
	ProgramID   string         `json:"programId,omitempty"`
	BaseVersion *time.Time     `json:"baseVersion,omitempty"`
	Program     *model.Program `json:"program"`
}

// uploadFolder keeps uploads of an unsaved program apart from every other draft.
func uploadFolder(d *editor.Draft) string {
	if d.ProgramID() == "" {
		return storage.DraftPrefix(d.ID())
	}
	return storage.ProgramPrefix(d.ProgramID())
}

func viewOf(d *editor.Draft) *DraftView {
	v := &DraftView{ProgramID: d.ProgramID(), Program: d.Program()}
	if base := d.BaseVersion(); !base.IsZero() {
		v.BaseVersion = &base
	}
	return v
}

// EditorService drives one draft per administrator.
type EditorService interface {
	NewDraft(owner string) *DraftView
	LoadDraft(ctx context.Context, owner, programID string) (*DraftView, error)
	Draft(owner string) (*DraftView, error)
	CloseDraft(owner string)
	// Edit applies fn to the open draft and returns the result.
	Edit(owner string, fn func(d *editor.Draft) error) (*DraftView, error)
	UploadVideo(ctx context.Context, owner, videoID string, f upload.File) (*DraftView, error)
	UploadResource(ctx context.Context, owner string, scope editor.Scope, displayName string, f upload.File) (*DraftView, error)
	Uploads(owner string) []editor.UploadProgress
	// Save persists the draft and closes it. On failure the draft stays open.
	Save(ctx context.Context, owner string) (*model.Program, error)
}

type editorService struct {
	workspace *editor.Workspace
	programs  ProgramService
	uploader  *upload.Uploader
	logger    zerolog.Logger
	now       func() time.Time
}

func NewEditorService(workspace *editor.Workspace, programs ProgramService, uploader *upload.Uploader, logger zerolog.Logger) EditorService {
	return &editorService{
		workspace: workspace,
		programs:  programs,
		uploader:  uploader,
		logger:    logger.With().Str("service", "editor").Logger(),
		now:       time.Now,
	}
}

func (s *editorService) NewDraft(owner string) *DraftView {
	d := editor.NewDraft()
	s.workspace.Session(owner).Open(d)
	return viewOf(d)
}

func (s *editorService) LoadDraft(ctx context.Context, owner, programID string) (*DraftView, error) {
	p, err := s.programs.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, repository.ErrNotFound
	}
	d := editor.LoadDraft(p)
	s.workspace.Session(owner).Open(d)
	return viewOf(d), nil
}

func (s *editorService) Draft(owner string) (*DraftView, error) {
	return s.Edit(owner, func(*editor.Draft) error { return nil })
}

func (s *editorService) CloseDraft(owner string) {
	s.workspace.Session(owner).Close()
}

func (s *editorService) Edit(owner string, fn func(d *editor.Draft) error) (*DraftView, error) {
	var view *DraftView
	err := s.workspace.Session(owner).Do(func(d *editor.Draft) error {
		if err := fn(d); err != nil {
			return err
		}
		view = viewOf(d)
		return nil
	})
	return view, err
}

func (s *editorService) UploadVideo(ctx context.Context, owner, videoID string, f upload.File) (*DraftView, error) {
	sess := s.workspace.Session(owner)
	var folder string
	if err := sess.Do(func(d *editor.Draft) error {
		if !d.HasVideo(videoID) {
			return editor.ErrVideoNotFound
		}
		folder = uploadFolder(d)
		return nil
	}); err != nil {
		return nil, err
	}

	res, err := s.track(sess, videoID, f, func(progress func(sent, total int64)) (*upload.Result, error) {
		return s.uploader.UploadVideo(ctx, folder, f, progress)
	})
	if err != nil {
		return nil, err
	}
	return s.Edit(owner, func(d *editor.Draft) error {
		return d.SetVideoURL(videoID, res.URL)
	})
}

func (s *editorService) UploadResource(ctx context.Context, owner string, scope editor.Scope, displayName string, f upload.File) (*DraftView, error) {
	sess := s.workspace.Session(owner)
	var folder string
	if err := sess.Do(func(d *editor.Draft) error {
		if scope.PageID != "" && !d.HasPage(scope.PageID) {
			return editor.ErrPageNotFound
		}
		folder = uploadFolder(d)
		return nil
	}); err != nil {
		return nil, err
	}

	target := "resources"
	if scope.PageID != "" {
		target = scope.PageID
	}
	res, err := s.track(sess, target, f, func(progress func(sent, total int64)) (*upload.Result, error) {
		return s.uploader.UploadResource(ctx, folder, scope.PageID, f, progress)
	})
	if err != nil {
		return nil, err
	}
	return s.Edit(owner, func(d *editor.Draft) error {
		return d.AddResource(scope, upload.ResourceFor(displayName, f.Name, res.URL))
	})
}

// track records progress for the duration of one upload.
func (s *editorService) track(sess *editor.Session, target string, f upload.File, run func(progress func(sent, total int64)) (*upload.Result, error)) (*upload.Result, error) {
	id := model.NewID("upload")
	sess.StartUpload(editor.UploadProgress{ID: id, Target: target, Filename: f.Name, Total: f.Size, StartedAt: s.now()})
	defer sess.FinishUpload(id)

	res, err := run(func(sent, total int64) { sess.ReportUpload(id, sent, total) })
	if err != nil {
		if !upload.IsValidationError(err) {
			s.logger.Error().Err(err).Str("target", target).Str("filename", f.Name).Msg("Upload failed")
		}
		return nil, err
	}
	return res, nil
}

func (s *editorService) Uploads(owner string) []editor.UploadProgress {
	return s.workspace.Session(owner).Uploads()
}

func (s *editorService) Save(ctx context.Context, owner string) (*model.Program, error) {
	sess := s.workspace.Session(owner)
	d, err := sess.Take()
	if err != nil {
		return nil, err
	}
	saved, err := d.Save(ctx, s.programs)
	if err != nil {
		sess.Restore(d)
		return nil, err
	}
	s.logger.Info().Str("program_id", saved.ID).Msg("Program saved")
	return saved, nil
}
