package editor

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"meditation/internal/model"
	"meditation/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	created *model.Program
	id      string
	patch   repository.ProgramPatch
	err     error
}

func (f *fakeStore) CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = p.Clone()
	out := p.Clone()
	out.ID = "new-id"
	return out, nil
}

func (f *fakeStore) UpdateProgram(ctx context.Context, id string, patch repository.ProgramPatch) (*model.Program, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.id, f.patch = id, patch
	return &model.Program{ID: id, Name: *patch.Name}, nil
}

func TestAddDeletePagesKeepsOrderAndUniqueIDs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		d := NewDraft()
		var expected []string
		for step := 0; step < 40; step++ {
			if len(expected) > 0 && rng.Intn(3) == 0 {
				i := rng.Intn(len(expected))
				require.NoError(t, d.DeletePage(expected[i]))
				expected = append(expected[:i], expected[i+1:]...)
				continue
			}
			expected = append(expected, d.AddPage().ID)
		}

		pages := d.Program().Pages
		seen := map[string]bool{}
		var got []string
		for _, pg := range pages {
			assert.False(t, seen[pg.ID], "duplicate page id %s", pg.ID)
			seen[pg.ID] = true
			got = append(got, pg.ID)
		}
		assert.Equal(t, expected, got)
	}
}

func TestPageNumbersAreNotRenumbered(t *testing.T) {
	d := NewDraft()
	p1 := d.AddPage()
	p2 := d.AddPage()
	p3 := d.AddPage()
	assert.Equal(t, []int{1, 2, 3}, []int{p1.PageNumber, p2.PageNumber, p3.PageNumber})

	require.NoError(t, d.DeletePage(p2.ID))
	pages := d.Program().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 3, pages[1].PageNumber)

	assert.Equal(t, 3, d.AddPage().PageNumber)
}

func TestVideoOperations(t *testing.T) {
	d := NewDraft()
	pg := d.AddPage()
	other := d.AddPage()

	v, err := d.AddVideo(pg.ID)
	require.NoError(t, err)
	assert.Empty(t, v.URL)

	name := "Body scan"
	dur := 610.0
	updated, err := d.UpdateVideo(v.ID, VideoPatch{Name: &name, Duration: &dur})
	require.NoError(t, err)
	assert.Equal(t, "Body scan", updated.Name)
	require.NotNil(t, updated.Duration)

	require.NoError(t, d.SetVideoURL(v.ID, "https://cdn.example.com/v.mp4"))
	assert.Equal(t, "https://cdn.example.com/v.mp4", d.Program().Pages[0].Videos[0].URL)

	assert.ErrorIs(t, d.DeleteVideo(other.ID, v.ID), ErrVideoNotFound)
	require.NoError(t, d.DeleteVideo(pg.ID, v.ID))
	assert.Empty(t, d.Program().Pages[0].Videos)

	_, err = d.AddVideo("page-missing")
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, err = d.UpdateVideo("video-missing", VideoPatch{})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestDeleteResourceByIndexShiftsRemaining(t *testing.T) {
	d := NewDraft()
	scope := Scope{}
	require.NoError(t, d.AddResource(scope, model.NewResource("intro", "https://x/intro.txt")))
	require.NoError(t, d.AddResource(scope, model.NewResource("notes", "https://x/notes.pdf")))
	require.NoError(t, d.AddResource(scope, model.NewResource("map", "https://x/map.png")))

	require.NoError(t, d.DeleteResource(scope, 1))

	res, err := d.Resources(scope)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "intro", res[0].Name)
	assert.Equal(t, "map", res[1].Name)
	for _, r := range res {
		assert.NotEqual(t, "notes", r.Name)
	}

	assert.ErrorIs(t, d.DeleteResource(scope, 2), ErrResourceNotFound)
	assert.ErrorIs(t, d.DeleteResource(scope, -1), ErrResourceNotFound)
}

func TestPageScopedResources(t *testing.T) {
	d := NewDraft()
	pg := d.AddPage()
	require.NoError(t, d.AddResource(Scope{PageID: pg.ID}, model.NewResource("sheet", "https://x/sheet.pdf")))

	assert.Len(t, d.Program().Pages[0].Resources, 1)
	assert.Empty(t, d.Program().Resources)
	assert.ErrorIs(t, d.AddResource(Scope{PageID: "nope"}, model.Resource{}), ErrPageNotFound)
}

func TestLoadDraftIsIsolatedFromSource(t *testing.T) {
	src := &model.Program{ID: "p1", Name: "Original", UpdatedAt: time.Unix(100, 0), Pages: []model.Page{{ID: "page-1", PageNumber: 1}}}
	d := LoadDraft(src)

	name := "Edited"
	d.SetDetails(Details{Name: &name})
	_, err := d.UpdatePage("page-1", PagePatch{Instructions: &name})
	require.NoError(t, err)

	assert.Equal(t, "Original", src.Name)
	assert.Equal(t, "", src.Pages[0].Instructions)
	assert.Equal(t, "p1", d.ProgramID())
	assert.Equal(t, time.Unix(100, 0), d.BaseVersion())
}

func TestSaveCreatesNewProgramWithNormalizedArrays(t *testing.T) {
	store := &fakeStore{}
	d := NewDraft()
	d.AddPage()
	d.program.Resources = nil
	d.program.Pages[0].Resources = nil

	saved, err := d.Save(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "new-id", saved.ID)
	require.NotNil(t, store.created.Resources)
	require.NotNil(t, store.created.Pages[0].Resources)
}

func TestSaveUpdatesWithExpectedVersion(t *testing.T) {
	store := &fakeStore{}
	version := time.Unix(200, 0)
	d := LoadDraft(&model.Program{ID: "p1", Name: "Calm", UpdatedAt: version})

	_, err := d.Save(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "p1", store.id)
	require.NotNil(t, store.patch.ExpectedUpdatedAt)
	assert.Equal(t, version, *store.patch.ExpectedUpdatedAt)
	require.NotNil(t, store.patch.Resources)
	assert.NotNil(t, *store.patch.Resources)
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	store := &fakeStore{err: repository.ErrConflict}
	d := LoadDraft(&model.Program{ID: "p1", Name: "Calm", UpdatedAt: time.Unix(1, 0)})

	_, err := d.Save(context.Background(), store)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, "p1", d.ProgramID())
	assert.Equal(t, "Calm", d.Program().Name)
}

func TestDraftIDsAreUnique(t *testing.T) {
	a, b := NewDraft(), NewDraft()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
