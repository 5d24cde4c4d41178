package viewer

import (
	"testing"
	"time"

	"meditation/internal/model"
	"meditation/internal/timer"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReusesAndExpiresSessions(t *testing.T) {
	r := NewRegistry(time.Hour)
	start := time.Unix(1000, 0)

	s1 := r.Get("sid", start)
	assert.Same(t, s1, r.Get("sid", start.Add(30*time.Minute)))

	assert.Equal(t, 0, r.Sweep(start.Add(80*time.Minute)))
	assert.Equal(t, 1, r.Sweep(start.Add(2*time.Hour)))
	assert.Equal(t, 0, r.Len())

	assert.NotSame(t, s1, r.Get("sid", start.Add(3*time.Hour)))
}

func TestRegistryReconcilesAllSessions(t *testing.T) {
	r := NewRegistry(0)
	p := program("p", 2)
	for _, id := range []string{"a", "b"} {
		r.Get(id, time.Now()).Do(func(st *State, _ *timer.Countdown) { st.SelectProgram(&p) })
	}

	r.Reconcile([]model.Program{})

	for _, id := range []string{"a", "b"} {
		r.Get(id, time.Now()).Do(func(st *State, tm *timer.Countdown) {
			assert.Nil(t, st.Selected())
			assert.NotNil(t, tm)
		})
	}
}
