package viewer

import (
	"testing"
	"time"

	"meditation/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func program(id string, pages int) model.Program {
	p := model.Program{ID: id, Name: id}
	for i := 0; i < pages; i++ {
		p.Pages = append(p.Pages, model.Page{
			ID:         id + "-page-" + string(rune('a'+i)),
			PageNumber: i + 1,
			Videos:     []model.Video{{ID: id + "-video-" + string(rune('a'+i))}},
		})
	}
	return p
}

func TestEmptyStateHasNoPage(t *testing.T) {
	var s State
	_, ok := s.CurrentPage()
	assert.False(t, ok)
	assert.False(t, s.HasNextPage())
	assert.False(t, s.AdvancePage())
	assert.Nil(t, s.Selected())
}

func TestAdvanceStopsAtLastPage(t *testing.T) {
	p := program("p", 3)
	var s State
	s.SelectProgram(&p)

	for i := 0; i < 10; i++ {
		s.AdvancePage()
		assert.GreaterOrEqual(t, s.PageIndex(), 0)
		assert.LessOrEqual(t, s.PageIndex(), 2)
	}
	assert.Equal(t, 2, s.PageIndex())
	assert.False(t, s.HasNextPage())

	pg, ok := s.CurrentPage()
	require.True(t, ok)
	assert.Equal(t, 3, pg.PageNumber)
}

func TestSelectProgramResetsProgress(t *testing.T) {
	a := program("a", 2)
	b := program("b", 2)
	var s State
	s.SelectProgram(&a)
	s.AdvancePage()
	s.MarkVideoComplete("a-video-a")

	s.SelectProgram(&b)
	assert.Equal(t, 0, s.PageIndex())
	assert.Empty(t, s.Completed())
}

func TestMarkVideoCompleteIsIdempotent(t *testing.T) {
	p := program("p", 2)
	var s State
	s.SelectProgram(&p)
	s.MarkVideoComplete("p-video-b")
	s.MarkVideoComplete("p-video-a")
	s.MarkVideoComplete("p-video-b")

	assert.Equal(t, []string{"p-video-a", "p-video-b"}, s.Completed())
	assert.True(t, s.IsCompleted("p-video-a"))
}

func TestReconcileClampsIndex(t *testing.T) {
	p := program("p", 3)
	var s State
	s.SelectProgram(&p)
	s.AdvancePage()
	s.AdvancePage()
	s.MarkVideoComplete("p-video-a")

	shorter := program("p", 1)
	shorter.Name = "renamed"
	s.Reconcile([]model.Program{program("other", 1), shorter})

	assert.Equal(t, 0, s.PageIndex())
	assert.Equal(t, "renamed", s.Selected().Name)
	assert.True(t, s.IsCompleted("p-video-a"))
}

func TestReconcileClearsDeletedSelection(t *testing.T) {
	p := program("p", 2)
	var s State
	s.SelectProgram(&p)
	s.AdvancePage()

	s.Reconcile([]model.Program{program("other", 1)})
	assert.Nil(t, s.Selected())
	assert.Equal(t, 0, s.PageIndex())
	assert.Empty(t, s.Completed())
}

func TestCatalogOldestFirst(t *testing.T) {
	older := program("older", 2)
	older.CreatedAt = time.Unix(10, 0)
	newer := program("newer", 1)
	newer.CreatedAt = time.Unix(20, 0)

	c := NewCatalog([]model.Program{newer, older})
	require.Len(t, c.Programs, 2)
	assert.Equal(t, "older", c.Programs[0].ID)
	assert.Equal(t, 2, c.Programs[0].PageCount)
	assert.Empty(t, c.Empty)
}

func TestCatalogEmptyState(t *testing.T) {
	c := NewCatalog(nil)
	assert.NotNil(t, c.Programs)
	assert.Equal(t, EmptyCatalogMessage, c.Empty)
}
