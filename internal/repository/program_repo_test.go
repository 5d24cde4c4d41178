package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"meditation/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and resets the programs table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip postgres integration test")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE programs`)
	require.NoError(t, err)
	return db
}

func sampleProgram(pages, videosPerPage int) *model.Program {
	p := &model.Program{
		Name:         "Path to Stillness",
		Description:  "Seven sessions",
		Instructions: "Sit **upright**",
		Resources:    []model.Resource{model.NewResource("Guide", "https://cdn.example.com/guide.pdf")},
	}
	for i := 0; i < pages; i++ {
		pg := model.Page{
			ID:           fmt.Sprintf("page-%d", i),
			PageNumber:   i + 1,
			Instructions: fmt.Sprintf("Session %d", i+1),
		}
		for j := 0; j < videosPerPage; j++ {
			pg.Videos = append(pg.Videos, model.Video{
				ID:   fmt.Sprintf("video-%d-%d", i, j),
				Name: fmt.Sprintf("Video %d.%d", i+1, j+1),
				URL:  "https://cdn.example.com/v.mp4",
			})
		}
		p.Pages = append(p.Pages, pg)
	}
	return p
}

func TestProgramRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewProgramRepo(db, "programs_changed", zerolog.Nop())
	ctx := context.Background()

	in := sampleProgram(3, 2)
	created, err := repo.CreateProgram(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetProgram(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Pages, 3)
	for i, pg := range got.Pages {
		assert.Equal(t, in.Pages[i].ID, pg.ID)
		assert.Equal(t, in.Pages[i].PageNumber, pg.PageNumber)
		assert.Len(t, pg.Videos, 2)
		assert.NotNil(t, pg.Resources)
	}
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Resources, got.Resources)
}

func TestGetMissingProgramReturnsNil(t *testing.T) {
	db := openTestDB(t)
	repo := NewProgramRepo(db, "", zerolog.Nop())

	p, err := repo.GetProgram(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewProgramRepo(db, "", zerolog.Nop())
	ctx := context.Background()

	empty, err := repo.ListPrograms(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first, err := repo.CreateProgram(ctx, &model.Program{Name: "first"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := repo.CreateProgram(ctx, &model.Program{Name: "second"})
	require.NoError(t, err)

	list, err := repo.ListPrograms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestUpdateIsPartialAndLocked(t *testing.T) {
	db := openTestDB(t)
	repo := NewProgramRepo(db, "programs_changed", zerolog.Nop())
	ctx := context.Background()

	created, err := repo.CreateProgram(ctx, sampleProgram(1, 1))
	require.NoError(t, err)

	name := "Renamed"
	updated, err := repo.UpdateProgram(ctx, created.ID, ProgramPatch{Name: &name, ExpectedUpdatedAt: &created.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, created.Description, updated.Description)
	assert.Len(t, updated.Pages, 1)
	assert.True(t, !updated.UpdatedAt.Before(created.UpdatedAt))

	// The stale version no longer matches.
	_, err = repo.UpdateProgram(ctx, created.ID, ProgramPatch{Name: &name, ExpectedUpdatedAt: &created.UpdatedAt})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.UpdateProgram(ctx, "missing", ProgramPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewProgramRepo(db, "programs_changed", zerolog.Nop())
	ctx := context.Background()

	created, err := repo.CreateProgram(ctx, &model.Program{Name: "gone soon"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteProgram(ctx, created.ID))
	require.NoError(t, repo.DeleteProgram(ctx, created.ID))

	p, err := repo.GetProgram(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, p)
}
