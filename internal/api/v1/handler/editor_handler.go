package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"meditation/internal/api/v1/dto"
	"meditation/internal/auth"
	"meditation/internal/editor"
	"meditation/internal/service"
	"meditation/internal/upload"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartOverhead is the slack allowed above the file size limit for form
// fields and part headers.
const multipartOverhead = 1 << 20

// EditorHandler exposes the admin draft editor
type EditorHandler struct {
	editorService   service.EditorService
	validate        *validator.Validate
	maxVideoSize    int64
	maxResourceSize int64
	logger          zerolog.Logger
}

// NewEditorHandler creates a new EditorHandler
func NewEditorHandler(editorService service.EditorService, validate *validator.Validate, maxVideoSize, maxResourceSize int64, logger zerolog.Logger) *EditorHandler {
	return &EditorHandler{
		editorService:   editorService,
		validate:        validate,
		maxVideoSize:    maxVideoSize,
		maxResourceSize: maxResourceSize,
		logger:          logger.With().Str("handler", "editor").Logger(),
	}
}

// RegisterRoutes mounts draft editor routes
func (h *EditorHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"POST /admin/draft":                                    h.newDraft,
		"POST /admin/draft/load":                               h.loadDraft,
		"GET /admin/draft":                                     h.getDraft,
		"DELETE /admin/draft":                                  h.closeDraft,
		"PATCH /admin/draft":                                   h.updateDetails,
		"POST /admin/draft/save":                               h.saveDraft,
		"POST /admin/draft/pages":                              h.addPage,
		"PATCH /admin/draft/pages/{pageId}":                    h.updatePage,
		"DELETE /admin/draft/pages/{pageId}":                   h.deletePage,
		"POST /admin/draft/pages/{pageId}/videos":              h.addVideo,
		"DELETE /admin/draft/pages/{pageId}/videos/{videoId}":  h.deleteVideo,
		"PATCH /admin/draft/videos/{videoId}":                  h.updateVideo,
		"POST /admin/draft/videos/{videoId}/upload":            h.uploadVideo,
		"POST /admin/draft/resources":                          h.addResource,
		"DELETE /admin/draft/resources/{index}":                h.deleteResource,
		"POST /admin/draft/pages/{pageId}/resources":           h.addResource,
		"DELETE /admin/draft/pages/{pageId}/resources/{index}": h.deleteResource,
		"GET /admin/draft/uploads":                             h.listUploads,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, adminMw(fn))
	}
}

func owner(r *http.Request) string {
	return auth.FromContext(r.Context()).Subject
}

func (h *EditorHandler) edit(w http.ResponseWriter, r *http.Request, status int, fn func(d *editor.Draft) error) {
	view, err := h.editorService.Edit(owner(r), fn)
	if err != nil {
		writeError(w, "Draft update failed", err)
		return
	}
	writeJSON(w, status, view)
}

// newDraft godoc
// @Summary Start a new program draft
// @Description Discards any open draft and starts an empty one.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 201 {object} service.DraftView
// @Router /admin/draft [post]
func (h *EditorHandler) newDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.editorService.NewDraft(owner(r)))
}

// loadDraft godoc
// @Summary Edit an existing program
// @Description Opens a private copy of the program. Remote changes do not affect it; saving over them fails with 409.
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.DraftLoadDTO true "Program to edit"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "program not found"
// @Router /admin/draft/load [post]
func (h *EditorHandler) loadDraft(w http.ResponseWriter, r *http.Request) {
	var req dto.DraftLoadDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	view, err := h.editorService.LoadDraft(r.Context(), owner(r), req.ProgramID)
	if err != nil {
		writeError(w, "Failed to load program", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// getDraft godoc
// @Summary Current draft
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.DraftView
// @Failure 409 {string} string "no draft is open"
// @Router /admin/draft [get]
func (h *EditorHandler) getDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.editorService.Draft(owner(r))
	if err != nil {
		writeError(w, "Failed to read draft", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// closeDraft godoc
// @Summary Discard the draft
// @Tags admin
// @Security BearerAuth
// @Success 204
// @Router /admin/draft [delete]
func (h *EditorHandler) closeDraft(w http.ResponseWriter, r *http.Request) {
	h.editorService.CloseDraft(owner(r))
	w.WriteHeader(http.StatusNoContent)
}

// updateDetails godoc
// @Summary Update program details
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.DraftDetailsDTO true "Fields to change"
// @Success 200 {object} service.DraftView
// @Router /admin/draft [patch]
func (h *EditorHandler) updateDetails(w http.ResponseWriter, r *http.Request) {
	var req dto.DraftDetailsDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		d.SetDetails(editor.Details{Name: req.Name, Description: req.Description, Instructions: req.Instructions})
		return nil
	})
}

// saveDraft godoc
// @Summary Save the draft
// @Description Creates the program or updates the loaded one, then closes the draft.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} model.Program
// @Failure 404 {string} string "program not found"
// @Failure 409 {string} string "program was changed by someone else"
// @Failure 500 {string} string "Failed to save program"
// @Router /admin/draft/save [post]
func (h *EditorHandler) saveDraft(w http.ResponseWriter, r *http.Request) {
	saved, err := h.editorService.Save(r.Context(), owner(r))
	if err != nil {
		writeError(w, "Failed to save program", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// addPage godoc
// @Summary Add a page
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 201 {object} service.DraftView
// @Router /admin/draft/pages [post]
func (h *EditorHandler) addPage(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, http.StatusCreated, func(d *editor.Draft) error {
		d.AddPage()
		return nil
	})
}

// updatePage godoc
// @Summary Update a page
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param pageId path string true "Page ID"
// @Param request body dto.PageUpdateDTO true "Fields to change"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "page not found in draft"
// @Router /admin/draft/pages/{pageId} [patch]
func (h *EditorHandler) updatePage(w http.ResponseWriter, r *http.Request) {
	var req dto.PageUpdateDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	pageID := r.PathValue("pageId")
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		_, err := d.UpdatePage(pageID, editor.PagePatch{Instructions: req.Instructions})
		return err
	})
}

// deletePage godoc
// @Summary Delete a page
// @Description Remaining pages keep their numbers.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param pageId path string true "Page ID"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "page not found in draft"
// @Router /admin/draft/pages/{pageId} [delete]
func (h *EditorHandler) deletePage(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("pageId")
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		return d.DeletePage(pageID)
	})
}

// addVideo godoc
// @Summary Add a video slot to a page
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param pageId path string true "Page ID"
// @Success 201 {object} service.DraftView
// @Failure 404 {string} string "page not found in draft"
// @Router /admin/draft/pages/{pageId}/videos [post]
func (h *EditorHandler) addVideo(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("pageId")
	h.edit(w, r, http.StatusCreated, func(d *editor.Draft) error {
		_, err := d.AddVideo(pageID)
		return err
	})
}

// updateVideo godoc
// @Summary Update a video
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param videoId path string true "Video ID"
// @Param request body dto.VideoUpdateDTO true "Fields to change"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "video not found in draft"
// @Router /admin/draft/videos/{videoId} [patch]
func (h *EditorHandler) updateVideo(w http.ResponseWriter, r *http.Request) {
	var req dto.VideoUpdateDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	videoID := r.PathValue("videoId")
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		_, err := d.UpdateVideo(videoID, editor.VideoPatch{
			Name:             req.Name,
			Description:      req.Description,
			URL:              req.URL,
			Duration:         req.Duration,
			DownloadURL:      req.DownloadURL,
			DownloadFileName: req.DownloadFileName,
		})
		return err
	})
}

// deleteVideo godoc
// @Summary Delete a video
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param pageId path string true "Page ID"
// @Param videoId path string true "Video ID"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "video not found in draft"
// @Router /admin/draft/pages/{pageId}/videos/{videoId} [delete]
func (h *EditorHandler) deleteVideo(w http.ResponseWriter, r *http.Request) {
	pageID, videoID := r.PathValue("pageId"), r.PathValue("videoId")
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		return d.DeleteVideo(pageID, videoID)
	})
}

// addResource godoc
// @Summary Attach a resource
// @Description Accepts either a JSON body with name and url, or a multipart upload in field "file" with an optional "name".
// @Tags admin
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param pageId path string false "Page ID for page resources"
// @Param request body dto.ResourceCreateDTO false "Resource by URL"
// @Param file formData file false "Resource file"
// @Success 201 {object} service.DraftView
// @Failure 400 {string} string "invalid file type"
// @Failure 404 {string} string "page not found in draft"
// @Failure 502 {string} string "Upload failed"
// @Router /admin/draft/resources [post]
// @Router /admin/draft/pages/{pageId}/resources [post]
func (h *EditorHandler) addResource(w http.ResponseWriter, r *http.Request) {
	scope := editor.Scope{PageID: r.PathValue("pageId")}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req dto.ResourceCreateDTO
		if !decodeAndValidate(w, r, &req, h.validate) {
			return
		}
		h.edit(w, r, http.StatusCreated, func(d *editor.Draft) error {
			return d.AddResource(scope, upload.ResourceFor(req.Name, req.URL, req.URL))
		})
		return
	}

	f, closeFile, ok := h.formFile(w, r, h.maxResourceSize)
	if !ok {
		return
	}
	defer closeFile()
	view, err := h.editorService.UploadResource(r.Context(), owner(r), scope, r.FormValue("name"), f)
	if err != nil {
		h.uploadError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// deleteResource godoc
// @Summary Remove a resource by position
// @Description Later resources shift down by one.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param pageId path string false "Page ID for page resources"
// @Param index path int true "Resource index"
// @Success 200 {object} service.DraftView
// @Failure 404 {string} string "resource not found in draft"
// @Router /admin/draft/resources/{index} [delete]
// @Router /admin/draft/pages/{pageId}/resources/{index} [delete]
func (h *EditorHandler) deleteResource(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid resource index", http.StatusBadRequest)
		return
	}
	scope := editor.Scope{PageID: r.PathValue("pageId")}
	h.edit(w, r, http.StatusOK, func(d *editor.Draft) error {
		return d.DeleteResource(scope, index)
	})
}

// uploadVideo godoc
// @Summary Upload a video file
// @Description Streams the file to storage and sets the video URL. Progress is reported by /admin/draft/uploads.
// @Tags admin
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param videoId path string true "Video ID"
// @Param file formData file true "Video file"
// @Success 200 {object} service.DraftView
// @Failure 400 {string} string "invalid file type"
// @Failure 404 {string} string "video not found in draft"
// @Failure 502 {string} string "Upload failed"
// @Router /admin/draft/videos/{videoId}/upload [post]
func (h *EditorHandler) uploadVideo(w http.ResponseWriter, r *http.Request) {
	f, closeFile, ok := h.formFile(w, r, h.maxVideoSize)
	if !ok {
		return
	}
	defer closeFile()
	view, err := h.editorService.UploadVideo(r.Context(), owner(r), r.PathValue("videoId"), f)
	if err != nil {
		h.uploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// listUploads godoc
// @Summary In-flight uploads
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {array} editor.UploadProgress
// @Router /admin/draft/uploads [get]
func (h *EditorHandler) listUploads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.editorService.Uploads(owner(r)))
}

// formFile reads the single "file" part of a multipart request.
func (h *EditorHandler) formFile(w http.ResponseWriter, r *http.Request, maxSize int64) (upload.File, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, upload.ErrFileTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return upload.File{}, nil, false
		}
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return upload.File{}, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return upload.File{}, nil, false
	}
	closeFile := func() {
		file.Close()
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}
	return fileFromHeader(file, header), closeFile, true
}

func fileFromHeader(file multipart.File, header *multipart.FileHeader) upload.File {
	return upload.File{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
}

func (h *EditorHandler) uploadError(w http.ResponseWriter, err error) {
	if status := errorStatus(err); status != http.StatusInternalServerError {
		http.Error(w, err.Error(), status)
		return
	}
	http.Error(w, "Upload failed: "+err.Error(), http.StatusBadGateway)
}
