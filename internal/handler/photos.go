package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/photomatch"
)

// maxPhotoUpload bounds one multipart batch.
const maxPhotoUpload = 64 << 20

// PhotoMatcher links final photos to orders by file name.
// Satisfied by *photomatch.Matcher; narrow interface for testability.
type PhotoMatcher interface {
	MatchAll(ctx context.Context, files []photomatch.File) photomatch.Summary
}

// PhotoHandler handles final photo uploads from the attendant.
type PhotoHandler struct {
	matcher PhotoMatcher
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(matcher PhotoMatcher) *PhotoHandler {
	return &PhotoHandler{matcher: matcher}
}

// RegisterRoutes registers photo endpoints on the given Chi router.
// Expected to be mounted inside the authenticated /admin subrouter.
func (h *PhotoHandler) RegisterRoutes(r chi.Router) {
	r.Post("/photos", h.Upload)
}

// --- Request / Response types ---

type photoUploadRequest struct {
	Files []photomatch.File `json:"files"`
}

// --- Handlers ---

// Upload handles POST /admin/photos. It accepts either a multipart form with
// one or more "photos" parts, or JSON {"files": [{name, mimeType, payload}]}
// with payloads already encoded as data URLs.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var files []photomatch.File

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req photoUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		files = req.Files

	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoUpload)
		if err := r.ParseMultipartForm(maxPhotoUpload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		for _, fh := range r.MultipartForm.File["photos"] {
			f, err := fh.Open()
			if err != nil {
				internalError(w, "open uploaded photo", err)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				internalError(w, "read uploaded photo", err)
				return
			}
			mimeType := fh.Header.Get("Content-Type")
			if mimeType == "" || mimeType == "application/octet-stream" {
				mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
			}
			files = append(files, photomatch.File{
				Name:     fh.Filename,
				MIMEType: mimeType,
				Payload:  dataURL(mimeType, data),
			})
		}

	default:
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "expected multipart/form-data or application/json"})
		return
	}

	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no photos uploaded"})
		return
	}

	writeJSON(w, http.StatusOK, h.matcher.MatchAll(r.Context(), files))
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
