// Package viewer tracks what each viewer is looking at: the selected program,
// the current page and the videos completed during the session.
package viewer

import "meditation/internal/model"

// State is one viewer's navigation state. The zero value has no selection.
type State struct {
	program   *model.Program
	pageIndex int
	completed map[string]struct{}
}

// SelectProgram switches to p, starting at its first page with no completed
// videos.
func (s *State) SelectProgram(p *model.Program) {
	s.program = p.Clone()
	s.pageIndex = 0
	s.completed = make(map[string]struct{})
}

// Selected returns the selected program or nil.
func (s *State) Selected() *model.Program {
	if s.program == nil {
		return nil
	}
	return s.program.Clone()
}

func (s *State) PageIndex() int { return s.pageIndex }

// HasNextPage reports whether a page follows the current one.
func (s *State) HasNextPage() bool {
	return s.program != nil && s.pageIndex < len(s.program.Pages)-1
}

// AdvancePage moves to the next page. At the last page it does nothing.
func (s *State) AdvancePage() bool {
	if !s.HasNextPage() {
		return false
	}
	s.pageIndex++
	return true
}

// CurrentPage returns the page at the current index, or false when nothing is
// selected or the program has no pages.
func (s *State) CurrentPage() (model.Page, bool) {
	if s.program == nil || len(s.program.Pages) == 0 {
		return model.Page{}, false
	}
	return s.program.Pages[s.pageIndex].Clone(), true
}

// MarkVideoComplete records videoID as watched. Repeated calls are no-ops.
func (s *State) MarkVideoComplete(videoID string) {
	if s.completed == nil {
		s.completed = make(map[string]struct{})
	}
	s.completed[videoID] = struct{}{}
}

func (s *State) IsCompleted(videoID string) bool {
	_, ok := s.completed[videoID]
	return ok
}

// Completed lists completed video ids in page order; ids no longer present in
// the program come last in no particular order.
func (s *State) Completed() []string {
	out := make([]string, 0, len(s.completed))
	seen := make(map[string]bool, len(s.completed))
	if s.program != nil {
		for _, pg := range s.program.Pages {
			for _, v := range pg.Videos {
				if _, ok := s.completed[v.ID]; ok && !seen[v.ID] {
					out = append(out, v.ID)
					seen[v.ID] = true
				}
			}
		}
	}
	for id := range s.completed {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Reconcile applies a fresh program list from the change feed. The selected
// program is replaced by its newer version with the page index clamped, or
// the selection is cleared when the program is gone.
func (s *State) Reconcile(programs []model.Program) {
	if s.program == nil {
		return
	}
	for i := range programs {
		if programs[i].ID != s.program.ID {
			continue
		}
		s.program = programs[i].Clone()
		if last := len(s.program.Pages) - 1; s.pageIndex > last {
			s.pageIndex = max(last, 0)
		}
		return
	}
	s.program = nil
	s.pageIndex = 0
	s.completed = nil
}
