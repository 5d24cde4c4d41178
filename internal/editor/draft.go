// Package editor holds the administrator's in-memory draft of one program.
//
// A Draft is a private copy: remote changes to the stored program never touch
// it. Saving an edited program sends the version captured at load time, so a
// save over a concurrent remote change fails with repository.ErrConflict
// instead of silently overwriting it.
package editor

import (
	"context"
	"errors"
	"time"

	"meditation/internal/model"
	"meditation/internal/repository"
)

var (
	ErrNoDraft          = errors.New("no draft is open")
	ErrPageNotFound     = errors.New("page not found in draft")
	ErrVideoNotFound    = errors.New("video not found in draft")
	ErrResourceNotFound = errors.New("resource not found in draft")
)

// Store persists drafts.
type Store interface {
	CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error)
	UpdateProgram(ctx context.Context, id string, patch repository.ProgramPatch) (*model.Program, error)
}

// Scope selects program-level resources (empty PageID) or a page's resources.
type Scope struct {
	PageID string
}

type Draft struct {
	id          string
	programID   string
	baseVersion time.Time
	program     model.Program
}

// NewDraft starts an empty program.
func NewDraft() *Draft {
	return &Draft{
		id:      model.NewID("draft"),
		program: model.Program{Pages: []model.Page{}, Resources: []model.Resource{}},
	}
}

// LoadDraft starts editing a copy of an existing program.
func LoadDraft(p *model.Program) *Draft {
	c := p.Clone()
	if c.Resources == nil {
		c.Resources = []model.Resource{}
	}
	return &Draft{id: model.NewID("draft"), programID: p.ID, baseVersion: p.UpdatedAt, program: *c}
}

// ID identifies this draft; uploads of an unsaved program are kept under it.
func (d *Draft) ID() string { return d.id }

// ProgramID is empty for a program that has not been saved yet.
func (d *Draft) ProgramID() string { return d.programID }

// BaseVersion is the UpdatedAt of the program when it was loaded.
func (d *Draft) BaseVersion() time.Time { return d.baseVersion }

// Program returns a copy of the draft contents.
func (d *Draft) Program() *model.Program {
	return d.program.Clone()
}

type Details struct {
	Name         *string
	Description  *string
	Instructions *string
}

func (d *Draft) SetDetails(details Details) {
	if details.Name != nil {
		d.program.Name = *details.Name
	}
	if details.Description != nil {
		d.program.Description = *details.Description
	}
	if details.Instructions != nil {
		d.program.Instructions = *details.Instructions
	}
}

// AddPage appends a page numbered one past the current page count.
func (d *Draft) AddPage() model.Page {
	pg := model.Page{
		ID:         model.NewPageID(),
		PageNumber: len(d.program.Pages) + 1,
		Videos:     []model.Video{},
		Resources:  []model.Resource{},
	}
	d.program.Pages = append(d.program.Pages, pg)
	return pg.Clone()
}

type PagePatch struct {
	Instructions *string
}

func (d *Draft) UpdatePage(pageID string, patch PagePatch) (model.Page, error) {
	pg, err := d.page(pageID)
	if err != nil {
		return model.Page{}, err
	}
	if patch.Instructions != nil {
		pg.Instructions = *patch.Instructions
	}
	return pg.Clone(), nil
}

// DeletePage removes a page. Remaining pages keep their numbers.
func (d *Draft) DeletePage(pageID string) error {
	for i := range d.program.Pages {
		if d.program.Pages[i].ID == pageID {
			d.program.Pages = append(d.program.Pages[:i], d.program.Pages[i+1:]...)
			return nil
		}
	}
	return ErrPageNotFound
}

// HasPage reports whether pageID is part of the draft.
func (d *Draft) HasPage(pageID string) bool {
	_, err := d.page(pageID)
	return err == nil
}

func (d *Draft) AddVideo(pageID string) (model.Video, error) {
	pg, err := d.page(pageID)
	if err != nil {
		return model.Video{}, err
	}
	v := model.Video{ID: model.NewVideoID()}
	pg.Videos = append(pg.Videos, v)
	return v, nil
}

type VideoPatch struct {
	Name             *string
	Description      *string
	URL              *string
	Duration         *float64
	DownloadURL      *string
	DownloadFileName *string
}

// UpdateVideo looks the video up across all pages.
func (d *Draft) UpdateVideo(videoID string, patch VideoPatch) (model.Video, error) {
	v, err := d.video(videoID)
	if err != nil {
		return model.Video{}, err
	}
	if patch.Name != nil {
		v.Name = *patch.Name
	}
	if patch.Description != nil {
		v.Description = *patch.Description
	}
	if patch.URL != nil {
		v.URL = *patch.URL
	}
	if patch.Duration != nil {
		dur := *patch.Duration
		v.Duration = &dur
	}
	if patch.DownloadURL != nil {
		v.DownloadURL = *patch.DownloadURL
	}
	if patch.DownloadFileName != nil {
		v.DownloadFileName = *patch.DownloadFileName
	}
	return *v, nil
}

// SetVideoURL records the playable URL once an upload completes.
func (d *Draft) SetVideoURL(videoID, url string) error {
	_, err := d.UpdateVideo(videoID, VideoPatch{URL: &url})
	return err
}

// HasVideo reports whether videoID exists on any page.
func (d *Draft) HasVideo(videoID string) bool {
	_, err := d.video(videoID)
	return err == nil
}

func (d *Draft) DeleteVideo(pageID, videoID string) error {
	pg, err := d.page(pageID)
	if err != nil {
		return err
	}
	for i := range pg.Videos {
		if pg.Videos[i].ID == videoID {
			pg.Videos = append(pg.Videos[:i], pg.Videos[i+1:]...)
			return nil
		}
	}
	return ErrVideoNotFound
}

func (d *Draft) AddResource(scope Scope, r model.Resource) error {
	list, err := d.resources(scope)
	if err != nil {
		return err
	}
	*list = append(*list, r)
	return nil
}

// DeleteResource removes the resource at index; later resources shift down.
func (d *Draft) DeleteResource(scope Scope, index int) error {
	list, err := d.resources(scope)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*list) {
		return ErrResourceNotFound
	}
	*list = append((*list)[:index], (*list)[index+1:]...)
	return nil
}

// Resources returns a copy of the resources in scope.
func (d *Draft) Resources(scope Scope) ([]model.Resource, error) {
	list, err := d.resources(scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.Resource, len(*list))
	copy(out, *list)
	return out, nil
}

// Save persists the draft: a new program is created, a loaded one is updated
// under an optimistic lock.
func (d *Draft) Save(ctx context.Context, store Store) (*model.Program, error) {
	p := d.Program()
	p.Normalize()

	var (
		saved *model.Program
		err   error
	)
	if d.programID == "" {
		saved, err = store.CreateProgram(ctx, p)
	} else {
		patch := repository.ProgramPatch{
			Name:         &p.Name,
			Description:  &p.Description,
			Instructions: &p.Instructions,
			Pages:        &p.Pages,
			Resources:    &p.Resources,
		}
		if !d.baseVersion.IsZero() {
			base := d.baseVersion
			patch.ExpectedUpdatedAt = &base
		}
		saved, err = store.UpdateProgram(ctx, d.programID, patch)
	}
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (d *Draft) page(pageID string) (*model.Page, error) {
	for i := range d.program.Pages {
		if d.program.Pages[i].ID == pageID {
			return &d.program.Pages[i], nil
		}
	}
	return nil, ErrPageNotFound
}

func (d *Draft) video(videoID string) (*model.Video, error) {
	for i := range d.program.Pages {
		pg := &d.program.Pages[i]
		for j := range pg.Videos {
			if pg.Videos[j].ID == videoID {
				return &pg.Videos[j], nil
			}
		}
	}
	return nil, ErrVideoNotFound
}

func (d *Draft) resources(scope Scope) (*[]model.Resource, error) {
	if scope.PageID == "" {
		return &d.program.Resources, nil
	}
	pg, err := d.page(scope.PageID)
	if err != nil {
		return nil, err
	}
	return &pg.Resources, nil
}
