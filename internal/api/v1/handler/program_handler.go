package handler

import (
	"context"
	"net/http"
	"time"

	"meditation/internal/api/v1/dto"
	"meditation/internal/feed"
	"meditation/internal/model"
	"meditation/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// Subscriber is the change feed.
type Subscriber interface {
	Subscribe(ctx context.Context, cb feed.Callback) (func(), error)
}

// ProgramHandler serves the stored program collection
type ProgramHandler struct {
	programService service.ProgramService
	feed           Subscriber
	upgrader       websocket.Upgrader
	logger         zerolog.Logger
}

// NewProgramHandler creates a new ProgramHandler
func NewProgramHandler(programService service.ProgramService, feed Subscriber, logger zerolog.Logger) *ProgramHandler {
	return &ProgramHandler{
		programService: programService,
		feed:           feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("handler", "programs").Logger(),
	}
}

// RegisterRoutes mounts program routes
func (h *ProgramHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /programs", h.listPrograms)
	mux.HandleFunc("GET /programs/stream", h.streamPrograms)
	mux.HandleFunc("GET /programs/{programId}", h.getProgram)
	mux.Handle("DELETE /admin/programs/{programId}", adminMw(http.HandlerFunc(h.deleteProgram)))
}

// listPrograms godoc
// @Summary List programs
// @Description Returns every program, newest created first. An empty store yields an empty list.
// @Tags programs
// @Produce json
// @Success 200 {object} dto.ProgramListResponseDTO
// @Failure 500 {string} string "Failed to list programs"
// @Router /programs [get]
func (h *ProgramHandler) listPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programService.ListPrograms(r.Context())
	if err != nil {
		writeError(w, "Failed to list programs", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProgramListResponseDTO{Programs: programs})
}

// getProgram godoc
// @Summary Get a program
// @Tags programs
// @Produce json
// @Param programId path string true "Program ID"
// @Success 200 {object} model.Program
// @Failure 404 {string} string "Program not found"
// @Failure 500 {string} string "Failed to retrieve program"
// @Router /programs/{programId} [get]
func (h *ProgramHandler) getProgram(w http.ResponseWriter, r *http.Request) {
	p, err := h.programService.GetProgram(r.Context(), r.PathValue("programId"))
	if err != nil {
		writeError(w, "Failed to retrieve program", err)
		return
	}
	if p == nil {
		http.Error(w, "Program not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// deleteProgram godoc
// @Summary Delete a program
// @Description Deletes the program and schedules removal of its stored files. Deleting a missing program succeeds.
// @Tags admin
// @Security BearerAuth
// @Param programId path string true "Program ID"
// @Success 204
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Failed to delete program"
// @Router /admin/programs/{programId} [delete]
func (h *ProgramHandler) deleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := h.programService.DeleteProgram(r.Context(), r.PathValue("programId")); err != nil {
		writeError(w, "Failed to delete program", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamPrograms godoc
// @Summary Stream program changes
// @Description Upgrades to a websocket that sends the full program list immediately and after every change.
// @Tags programs
// @Success 101
// @Router /programs/stream [get]
func (h *ProgramHandler) streamPrograms(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Latest wins: a slow client skips intermediate snapshots.
	updates := make(chan []model.Program, 1)
	unsubscribe, err := h.feed.Subscribe(ctx, func(programs []model.Program) {
		select {
		case <-updates:
		default:
		}
		updates <- programs
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to subscribe to program feed")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(streamWriteTimeout))
		return
	}
	defer unsubscribe()

	// The reader only watches for the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case programs := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(dto.ProgramStreamFrameDTO{Type: "programs", Programs: programs}); err != nil {
				h.logger.Debug().Err(err).Msg("Program stream closed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}
