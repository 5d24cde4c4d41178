package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRequiresOpenDraft(t *testing.T) {
	w := NewWorkspace()
	s := w.Session("admin@example.com")
	assert.Same(t, s, w.Session("admin@example.com"))

	err := s.Do(func(d *Draft) error { return nil })
	assert.ErrorIs(t, err, ErrNoDraft)

	s.Open(NewDraft())
	require.NoError(t, s.Do(func(d *Draft) error {
		d.AddPage()
		return nil
	}))

	d, err := s.Take()
	require.NoError(t, err)
	assert.Len(t, d.Program().Pages, 1)
	_, err = s.Take()
	assert.ErrorIs(t, err, ErrNoDraft)

	s.Restore(d)
	assert.NoError(t, s.Do(func(*Draft) error { return nil }))
}

func TestUploadProgressTracking(t *testing.T) {
	s := NewWorkspace().Session("a")
	s.StartUpload(UploadProgress{ID: "u2", StartedAt: time.Unix(2, 0)})
	s.StartUpload(UploadProgress{ID: "u1", StartedAt: time.Unix(1, 0)})
	s.ReportUpload("u1", 50, 200)
	s.ReportUpload("unknown", 1, 1)

	ups := s.Uploads()
	require.Len(t, ups, 2)
	assert.Equal(t, "u1", ups[0].ID)
	assert.Equal(t, 25.0, ups[0].Percent)

	s.FinishUpload("u1")
	assert.Len(t, s.Uploads(), 1)
}
