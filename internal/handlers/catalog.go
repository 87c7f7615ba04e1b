package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/edusphere/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

const (
	formFieldName  = "name"
	formFieldEmail = "email"
	formFieldTag   = "tag"
	formFieldImage = "image"

	// multipart overhead allowed on top of the image itself
	maxMultipartOverhead = 1 << 20
)

// TagHandler serves tag endpoints.
type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// TagRouter registers tag routes. Creating a tag is limited to admins.
func TagRouter(r chi.Router, h *TagHandler, auth, admin func(http.Handler) http.Handler) {
	r.Get("/", h.ListTags)
	r.With(auth, admin).Post("/", h.CreateTag)
}

type CreateTagRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := h.tags.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusCreated, "Tag Created Successfully", tag)
}

func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "All tags returned successfully", tags)
}

// UploadHandler accepts image uploads.
type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := parseUploadForm(w, r); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, services.ErrFileTooLarge, nil)
			return
		}
		writeServiceError(w, r, services.ErrFileRequired, nil)
		return
	}

	in := services.UploadInput{
		Name:  r.FormValue(formFieldName),
		Email: r.FormValue(formFieldEmail),
		Tag:   r.FormValue(formFieldTag),
	}

	file, header, err := r.FormFile(formFieldImage)
	if err == nil {
		// one byte past the limit is enough for the size check
		in.Data, err = io.ReadAll(io.LimitReader(file, services.MaxUploadSize+1))
		_ = file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		in.Filename = header.Filename
		in.ContentType = strings.TrimSpace(header.Header.Get("Content-Type"))
	}

	record, err := h.uploads.Upload(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Image Successfully Uploaded", record)
}

// parseUploadForm bounds and parses a multipart body. A form already parsed
// by the authorization gate is reused; a failed parse fails again with the
// same error since the limited body stays exhausted.
func parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+maxMultipartOverhead)
	return r.ParseMultipartForm(services.MaxUploadSize)
}

// Protected returns the caller's claims. It backs the role gated example
// routes.
func Protected(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		writeSuccess(w, http.StatusOK, message, claims)
	}
}
