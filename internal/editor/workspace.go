package editor

import (
	"sort"
	"sync"
	"time"
)

// Workspace keeps one editing session per administrator.
type Workspace struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewWorkspace() *Workspace {
	return &Workspace{sessions: make(map[string]*Session)}
}

// Session returns the session of owner, creating it on first use.
func (w *Workspace) Session(owner string) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[owner]
	if !ok {
		s = &Session{uploads: make(map[string]UploadProgress)}
		w.sessions[owner] = s
	}
	return s
}

// UploadProgress is the state of one in-flight upload.
type UploadProgress struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Filename  string    `json:"filename"`
	Sent      int64     `json:"sent"`
	Total     int64     `json:"total"`
	Percent   float64   `json:"percent"`
	StartedAt time.Time `json:"startedAt"`
}

// Session serializes edits to one administrator's draft.
type Session struct {
	mu    sync.Mutex
	draft *Draft

	uploadsMu sync.Mutex
	uploads   map[string]UploadProgress
}

// Open replaces the current draft.
func (s *Session) Open(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

// Close discards the current draft.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// Do runs fn with the open draft while holding the session lock.
func (s *Session) Do(fn func(d *Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return ErrNoDraft
	}
	return fn(s.draft)
}

// Take removes and returns the open draft so it can be saved without holding
// the lock. Restore puts it back if the save fails.
func (s *Session) Take() (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil, ErrNoDraft
	}
	d := s.draft
	s.draft = nil
	return d, nil
}

// Restore reopens d unless another draft was opened in the meantime.
func (s *Session) Restore(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		s.draft = d
	}
}

func (s *Session) StartUpload(p UploadProgress) {
	s.uploadsMu.Lock()
	defer s.uploadsMu.Unlock()
	s.uploads[p.ID] = p
}

func (s *Session) ReportUpload(id string, sent, total int64) {
	s.uploadsMu.Lock()
	defer s.uploadsMu.Unlock()
	p, ok := s.uploads[id]
	if !ok {
		return
	}
	p.Sent, p.Total = sent, total
	if total > 0 {
		p.Percent = float64(sent) / float64(total) * 100
	}
	s.uploads[id] = p
}

func (s *Session) FinishUpload(id string) {
	s.uploadsMu.Lock()
	defer s.uploadsMu.Unlock()
	delete(s.uploads, id)
}

// Uploads lists in-flight uploads, oldest first.
func (s *Session) Uploads() []UploadProgress {
	s.uploadsMu.Lock()
	defer s.uploadsMu.Unlock()
	out := make([]UploadProgress, 0, len(s.uploads))
	for _, p := range s.uploads {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
