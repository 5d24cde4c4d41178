package handler

import (
	"net/http"
	"time"

	"meditation/internal/api/v1/dto"
	"meditation/internal/markup"
	"meditation/internal/model"
	"meditation/internal/service"
	"meditation/internal/timer"
	"meditation/internal/viewer"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	viewerCookieName = "meditation_viewer"
	viewerSessionKey = "sid"
)

// ViewerHandler serves the per-session viewer state
type ViewerHandler struct {
	programService service.ProgramService
	registry       *viewer.Registry
	cookies        sessions.Store
	validate       *validator.Validate
	logger         zerolog.Logger
	now            func() time.Time
}

// NewViewerHandler creates a new ViewerHandler
func NewViewerHandler(programService service.ProgramService, registry *viewer.Registry, cookies sessions.Store, validate *validator.Validate, logger zerolog.Logger) *ViewerHandler {
	return &ViewerHandler{
		programService: programService,
		registry:       registry,
		cookies:        cookies,
		validate:       validate,
		logger:         logger.With().Str("handler", "viewer").Logger(),
		now:            time.Now,
	}
}

// RegisterRoutes mounts viewer routes
func (h *ViewerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /viewer", h.getState)
	mux.HandleFunc("GET /viewer/programs", h.catalog)
	mux.HandleFunc("POST /viewer/program", h.selectProgram)
	mux.HandleFunc("POST /viewer/next", h.nextPage)
	mux.HandleFunc("POST /viewer/videos/{videoId}/complete", h.completeVideo)
	mux.HandleFunc("GET /viewer/timer", h.getTimer)
	mux.HandleFunc("POST /viewer/timer", h.updateTimer)
}

// session resolves the viewer session from its cookie, issuing a new cookie
// when there is none.
func (h *ViewerHandler) session(w http.ResponseWriter, r *http.Request) (*viewer.Session, bool) {
	cookie, err := h.cookies.Get(r, viewerCookieName)
	if err != nil {
		// A cookie signed with an old key decodes as a fresh session.
		h.logger.Debug().Err(err).Msg("Discarding unreadable viewer cookie")
	}
	sid, _ := cookie.Values[viewerSessionKey].(string)
	if sid == "" {
		sid = model.NewID("viewer")
		cookie.Values[viewerSessionKey] = sid
		if err := cookie.Save(r, w); err != nil {
			h.logger.Error().Err(err).Msg("Failed to save viewer cookie")
			http.Error(w, "Failed to start viewer session", http.StatusInternalServerError)
			return nil, false
		}
	}
	return h.registry.Get(sid, h.now()), true
}

func (h *ViewerHandler) stateOf(st *viewer.State, t *timer.Countdown) dto.ViewerStateDTO {
	out := dto.ViewerStateDTO{
		PageIndex:       st.PageIndex(),
		HasNextPage:     st.HasNextPage(),
		CompletedVideos: st.Completed(),
		Timer:           t.Snapshot(h.now()),
	}
	if p := st.Selected(); p != nil {
		out.Program = &dto.ProgramViewDTO{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Instructions: markup.Parse(p.Instructions),
			Resources:    p.Resources,
			PageCount:    len(p.Pages),
		}
	}
	if pg, ok := st.CurrentPage(); ok {
		view := &dto.PageViewDTO{
			ID:           pg.ID,
			PageNumber:   pg.PageNumber,
			Instructions: markup.Parse(pg.Instructions),
			Videos:       make([]dto.VideoViewDTO, 0, len(pg.Videos)),
			Resources:    pg.Resources,
		}
		for _, v := range pg.Videos {
			view.Videos = append(view.Videos, dto.VideoViewDTO{
				Video:            v,
				DescriptionLines: markup.DescriptionLines(v.Description),
				Completed:        st.IsCompleted(v.ID),
			})
		}
		out.Page = view
	}
	return out
}

func (h *ViewerHandler) respond(w http.ResponseWriter, r *http.Request, fn func(st *viewer.State, t *timer.Countdown) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var (
		out dto.ViewerStateDTO
		err error
	)
	sess.Do(func(st *viewer.State, t *timer.Countdown) {
		if fn != nil {
			if err = fn(st, t); err != nil {
				return
			}
		}
		out = h.stateOf(st, t)
	})
	if err != nil {
		writeError(w, "Viewer update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// getState godoc
// @Summary Viewer state
// @Description Returns the selected program, the current page with rendered instructions, completed videos and the timer.
// @Tags viewer
// @Produce json
// @Success 200 {object} dto.ViewerStateDTO
// @Router /viewer [get]
func (h *ViewerHandler) getState(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, nil)
}

// catalog godoc
// @Summary Program catalog
// @Description Lists programs oldest first with page counts. An empty store reports the "no programs" empty state.
// @Tags viewer
// @Produce json
// @Success 200 {object} viewer.Catalog
// @Failure 500 {string} string "Failed to list programs"
// @Router /viewer/programs [get]
func (h *ViewerHandler) catalog(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programService.ListPrograms(r.Context())
	if err != nil {
		writeError(w, "Failed to list programs", err)
		return
	}
	writeJSON(w, http.StatusOK, viewer.NewCatalog(programs))
}

// selectProgram godoc
// @Summary Select a program
// @Description Starts the program at its first page with no completed videos.
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body dto.ViewerSelectDTO true "Program to select"
// @Success 200 {object} dto.ViewerStateDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 404 {string} string "Program not found"
// @Router /viewer/program [post]
func (h *ViewerHandler) selectProgram(w http.ResponseWriter, r *http.Request) {
	var req dto.ViewerSelectDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	p, err := h.programService.GetProgram(r.Context(), req.ProgramID)
	if err != nil {
		writeError(w, "Failed to retrieve program", err)
		return
	}
	if p == nil {
		http.Error(w, "Program not found", http.StatusNotFound)
		return
	}
	h.respond(w, r, func(st *viewer.State, _ *timer.Countdown) error {
		st.SelectProgram(p)
		return nil
	})
}

// nextPage godoc
// @Summary Next page
// @Description Advances to the next page. At the last page the state is unchanged.
// @Tags viewer
// @Produce json
// @Success 200 {object} dto.ViewerStateDTO
// @Router /viewer/next [post]
func (h *ViewerHandler) nextPage(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(st *viewer.State, _ *timer.Countdown) error {
		st.AdvancePage()
		return nil
	})
}

// completeVideo godoc
// @Summary Mark a video complete
// @Tags viewer
// @Produce json
// @Param videoId path string true "Video ID"
// @Success 200 {object} dto.ViewerStateDTO
// @Router /viewer/videos/{videoId}/complete [post]
func (h *ViewerHandler) completeVideo(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	h.respond(w, r, func(st *viewer.State, _ *timer.Countdown) error {
		st.MarkVideoComplete(videoID)
		return nil
	})
}

// getTimer godoc
// @Summary Timer state
// @Tags viewer
// @Produce json
// @Success 200 {object} timer.Snapshot
// @Router /viewer/timer [get]
func (h *ViewerHandler) getTimer(w http.ResponseWriter, r *http.Request) {
	h.timerResponse(w, r, nil)
}

// updateTimer godoc
// @Summary Drive the timer
// @Description toggle starts or pauses, reset restores 30:00, set changes the duration while stopped, mute toggles the bell.
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body dto.TimerActionDTO true "Timer action"
// @Success 200 {object} timer.Snapshot
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 409 {string} string "Timer is running"
// @Router /viewer/timer [post]
func (h *ViewerHandler) updateTimer(w http.ResponseWriter, r *http.Request) {
	var req dto.TimerActionDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	h.timerResponse(w, r, func(t *timer.Countdown, now time.Time) error {
		switch req.Action {
		case "toggle":
			t.Toggle(now)
		case "reset":
			t.Reset()
		case "set":
			return t.Set(req.Minutes, req.Seconds)
		case "mute":
			t.ToggleMute()
		}
		return nil
	})
}

func (h *ViewerHandler) timerResponse(w http.ResponseWriter, r *http.Request, fn func(t *timer.Countdown, now time.Time) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var (
		snap timer.Snapshot
		err  error
	)
	sess.Do(func(_ *viewer.State, t *timer.Countdown) {
		now := h.now()
		if fn != nil {
			if err = fn(t, now); err != nil {
				return
			}
		}
		snap = t.Snapshot(now)
	})
	if err != nil {
		writeError(w, "Timer update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
