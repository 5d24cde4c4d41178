package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"meditation/internal/editor"
	"meditation/internal/model"
	"meditation/internal/pgmq"
	"meditation/internal/pubsub"
	"meditation/internal/repository"
	"meditation/internal/storage"
	"meditation/internal/upload"
	"meditation/internal/worker/cleanup"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory ProgramRepository.
type memRepo struct {
	mu       sync.Mutex
	programs map[string]*model.Program
	seq      int
	err      error
}

func newMemRepo() *memRepo {
	return &memRepo{programs: map[string]*model.Program{}}
}

func (r *memRepo) ListPrograms(ctx context.Context) ([]model.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []model.Program{}
	for _, p := range r.programs {
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (r *memRepo) GetProgram(ctx context.Context, id string) (*model.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.programs[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (r *memRepo) CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.seq++
	c := p.Clone()
	c.ID = model.NewProgramID()
	c.CreatedAt = time.Unix(int64(r.seq), 0)
	c.UpdatedAt = c.CreatedAt
	r.programs[c.ID] = c
	return c.Clone(), nil
}

func (r *memRepo) UpdateProgram(ctx context.Context, id string, patch repository.ProgramPatch) (*model.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.programs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.ExpectedUpdatedAt != nil && !patch.ExpectedUpdatedAt.Equal(p.UpdatedAt) {
		return nil, repository.ErrConflict
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Pages != nil {
		p.Pages = *patch.Pages
	}
	if patch.Resources != nil {
		p.Resources = *patch.Resources
	}
	r.seq++
	p.UpdatedAt = time.Unix(int64(r.seq), 0)
	return p.Clone(), nil
}

func (r *memRepo) DeleteProgram(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.programs, id)
	return nil
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

type recordingEvents struct{ events []pubsub.ProgramEvent }

func (r *recordingEvents) PublishProgramEvent(ctx context.Context, ev pubsub.ProgramEvent) error {
	r.events = append(r.events, ev)
	return nil
}

type recordingQueue struct {
	sent map[string][][]byte
}

func (q *recordingQueue) Send(ctx context.Context, queue string, payload []byte) error {
	if q.sent == nil {
		q.sent = map[string][][]byte{}
	}
	q.sent[queue] = append(q.sent[queue], payload)
	return nil
}

func (q *recordingQueue) ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error) {
	return nil, nil
}

func (q *recordingQueue) Delete(ctx context.Context, queue string, msgIDs []int64) error { return nil }

type memBlobs struct {
	keys []string
	err  error
}

func (m *memBlobs) Upload(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string, progress storage.ProgressFunc) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	if progress != nil {
		progress(size, size)
	}
	m.keys = append(m.keys, key)
	return storage.PublicURL("https://cdn.example.com/bucket", key), nil
}

func (m *memBlobs) DeletePrefix(ctx context.Context, prefix string) (int, error) { return 0, nil }

func TestProgramServiceNotifiesAndPublishes(t *testing.T) {
	repo := newMemRepo()
	notifier := &countingNotifier{}
	events := &recordingEvents{}
	queue := &recordingQueue{}
	svc := NewProgramService(repo, zerolog.Nop(),
		WithNotifier(notifier), WithEvents(events), WithCleanupQueue(queue, "blob_cleanup_queue"))
	ctx := context.Background()

	created, err := svc.CreateProgram(ctx, &model.Program{Name: "Calm"})
	require.NoError(t, err)
	name := "Calmer"
	_, err = svc.UpdateProgram(ctx, created.ID, repository.ProgramPatch{Name: &name})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProgram(ctx, created.ID))

	assert.Equal(t, 3, notifier.n)
	require.Len(t, events.events, 3)
	assert.Equal(t, pubsub.ProgramCreated, events.events[0].Action)
	assert.Equal(t, pubsub.ProgramDeleted, events.events[2].Action)
	require.Len(t, queue.sent["blob_cleanup_queue"], 1)
	assert.Contains(t, string(queue.sent["blob_cleanup_queue"][0]), "programs/"+created.ID+"/")
}

func TestProgramServiceSurfacesErrors(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	notifier := &countingNotifier{}
	svc := NewProgramService(repo, zerolog.Nop(), WithNotifier(notifier))

	_, err := svc.ListPrograms(context.Background())
	assert.Error(t, err)
	_, err = svc.CreateProgram(context.Background(), &model.Program{})
	assert.Error(t, err)
	assert.Equal(t, 0, notifier.n)

	assert.ErrorIs(t, svc.DeleteProgram(context.Background(), ""), ErrMissingID)
}

var mp4Bytes = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 64)...)

func newEditorService(repo *memRepo, blobs *memBlobs, opts ...ProgramServiceOption) EditorService {
	programs := NewProgramService(repo, zerolog.Nop(), opts...)
	uploader := upload.NewUploader(blobs, 100<<20, 25<<20, zerolog.Nop())
	return NewEditorService(editor.NewWorkspace(), programs, uploader, zerolog.Nop())
}

func file(name, contentType string, data []byte) upload.File {
	return upload.File{Name: name, Size: int64(len(data)), ContentType: contentType, Body: bytes.NewReader(data)}
}

func TestEditorCreateUploadAndSave(t *testing.T) {
	repo := newMemRepo()
	blobs := &memBlobs{}
	svc := newEditorService(repo, blobs)
	ctx := context.Background()

	svc.NewDraft("admin")
	view, err := svc.Edit("admin", func(d *editor.Draft) error {
		name := "Morning"
		d.SetDetails(editor.Details{Name: &name})
		pg := d.AddPage()
		_, err := d.AddVideo(pg.ID)
		return err
	})
	require.NoError(t, err)
	videoID := view.Program.Pages[0].Videos[0].ID

	view, err = svc.UploadVideo(ctx, "admin", videoID, file("intro.mp4", "video/mp4", mp4Bytes))
	require.NoError(t, err)
	assert.Contains(t, view.Program.Pages[0].Videos[0].URL, "programs/new/draft-")
	assert.Empty(t, svc.Uploads("admin"))

	saved, err := svc.Save(ctx, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.NotNil(t, saved.Resources)

	_, err = svc.Draft("admin")
	assert.ErrorIs(t, err, editor.ErrNoDraft)
}

func TestEditorResourceUploadDefaultsName(t *testing.T) {
	repo := newMemRepo()
	blobs := &memBlobs{}
	svc := newEditorService(repo, blobs)
	svc.NewDraft("admin")

	view, err := svc.UploadResource(context.Background(), "admin", editor.Scope{}, "", file("notes.pdf", "application/pdf", []byte("%PDF-1.4\n%%EOF\n")))
	require.NoError(t, err)
	require.Len(t, view.Program.Resources, 1)
	assert.Equal(t, "notes", view.Program.Resources[0].Name)
	assert.Equal(t, "pdf", view.Program.Resources[0].Type)

	_, err = svc.UploadResource(context.Background(), "admin", editor.Scope{PageID: "page-missing"}, "", file("a.pdf", "application/pdf", []byte("%PDF-1.4\n")))
	assert.ErrorIs(t, err, editor.ErrPageNotFound)
}

func TestEditorUploadFailureLeavesDraftUntouched(t *testing.T) {
	repo := newMemRepo()
	blobs := &memBlobs{err: errors.New("bucket unavailable")}
	svc := newEditorService(repo, blobs)
	svc.NewDraft("admin")
	view, err := svc.Edit("admin", func(d *editor.Draft) error {
		_, err := d.AddVideo(d.AddPage().ID)
		return err
	})
	require.NoError(t, err)
	videoID := view.Program.Pages[0].Videos[0].ID

	_, err = svc.UploadVideo(context.Background(), "admin", videoID, file("a.mp4", "video/mp4", mp4Bytes))
	assert.Error(t, err)
	assert.Empty(t, svc.Uploads("admin"))

	view, err = svc.Draft("admin")
	require.NoError(t, err)
	assert.Empty(t, view.Program.Pages[0].Videos[0].URL)
}

func TestEditorSaveConflictKeepsDraftOpen(t *testing.T) {
	repo := newMemRepo()
	svc := newEditorService(repo, &memBlobs{})
	ctx := context.Background()

	created, err := repo.CreateProgram(ctx, &model.Program{Name: "Original"})
	require.NoError(t, err)
	_, err = svc.LoadDraft(ctx, "admin", created.ID)
	require.NoError(t, err)

	remote := "Changed elsewhere"
	_, err = repo.UpdateProgram(ctx, created.ID, repository.ProgramPatch{Name: &remote})
	require.NoError(t, err)

	_, err = svc.Save(ctx, "admin")
	assert.ErrorIs(t, err, repository.ErrConflict)

	view, err := svc.Draft("admin")
	require.NoError(t, err)
	assert.Equal(t, "Original", view.Program.Name)

	_, err = svc.LoadDraft(ctx, "admin", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func cleanupJobs(t *testing.T, q *recordingQueue) []cleanup.Job {
	var jobs []cleanup.Job
	for _, payload := range q.sent["blob_cleanup_queue"] {
		var job cleanup.Job
		require.NoError(t, json.Unmarshal(payload, &job))
		jobs = append(jobs, job)
	}
	return jobs
}

func TestDeleteCleansUpUploadsMadeBeforeFirstSave(t *testing.T) {
	repo := newMemRepo()
	blobs := &memBlobs{}
	queue := &recordingQueue{}
	svc := newEditorService(repo, blobs, WithCleanupQueue(queue, "blob_cleanup_queue"))
	programs := NewProgramService(repo, zerolog.Nop(), WithCleanupQueue(queue, "blob_cleanup_queue"))
	ctx := context.Background()

	svc.NewDraft("admin")
	view, err := svc.Edit("admin", func(d *editor.Draft) error {
		_, err := d.AddVideo(d.AddPage().ID)
		return err
	})
	require.NoError(t, err)
	_, err = svc.UploadVideo(ctx, "admin", view.Program.Pages[0].Videos[0].ID, file("intro.mp4", "video/mp4", mp4Bytes))
	require.NoError(t, err)
	saved, err := svc.Save(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, blobs.keys, 1)

	require.NoError(t, programs.DeleteProgram(ctx, saved.ID))

	jobs := cleanupJobs(t, queue)
	require.Len(t, jobs, 1)
	assert.Equal(t, "programs/"+saved.ID+"/", jobs[0].Prefix)
	assert.Equal(t, blobs.keys, jobs[0].Keys)
}

func TestDraftUploadsDoNotShareAFolder(t *testing.T) {
	blobs := &memBlobs{}
	svc := newEditorService(newMemRepo(), blobs)
	ctx := context.Background()

	for _, owner := range []string{"a@example.com", "b@example.com"} {
		svc.NewDraft(owner)
		_, err := svc.UploadResource(ctx, owner, editor.Scope{}, "", file("notes.pdf", "application/pdf", []byte("%PDF-1.4\n%%EOF\n")))
		require.NoError(t, err)
	}
	require.Len(t, blobs.keys, 2)
	dirA := blobs.keys[0][:strings.Index(blobs.keys[0], "resources/")]
	assert.True(t, strings.HasPrefix(dirA, "programs/new/draft-"))
	assert.False(t, strings.HasPrefix(blobs.keys[1], dirA))
}

func TestDeleteUnknownProgramSchedulesNothing(t *testing.T) {
	repo := newMemRepo()
	queue := &recordingQueue{}
	notifier := &countingNotifier{}
	programs := NewProgramService(repo, zerolog.Nop(), WithNotifier(notifier), WithCleanupQueue(queue, "blob_cleanup_queue"))
	ctx := context.Background()

	require.NoError(t, programs.DeleteProgram(ctx, storage.NewProgramFolder))
	require.NoError(t, programs.DeleteProgram(ctx, "missing"))
	assert.Empty(t, cleanupJobs(t, queue))
	assert.Equal(t, 0, notifier.n)
}

func TestDeleteNeverTargetsSharedDraftFolder(t *testing.T) {
	repo := newMemRepo()
	repo.programs[storage.NewProgramFolder] = &model.Program{ID: storage.NewProgramFolder}
	queue := &recordingQueue{}
	programs := NewProgramService(repo, zerolog.Nop(), WithCleanupQueue(queue, "blob_cleanup_queue"))

	require.NoError(t, programs.DeleteProgram(context.Background(), storage.NewProgramFolder))
	assert.Empty(t, cleanupJobs(t, queue))
}
