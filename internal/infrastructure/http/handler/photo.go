package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// UploadPhoto stores an issue photo from the raw request body.
// POST /photos?name=issues/{task_id}/{file}
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if h.photos == nil {
		response.Error(w, response.CodeServiceUnavailable, "photo storage is not configured", http.StatusServiceUnavailable)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		response.Error(w, response.CodeUnsupportedMedia, "photo must be an image", http.StatusUnsupportedMediaType)
		return
	}

	name := r.URL.Query().Get("name")
	if err := blob.ValidateName(name); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "failed to read body")
		return
	}
	if len(data) == 0 {
		response.ValidationError(w, "body", "photo is empty")
		return
	}

	url, err := h.photos.Upload(r.Context(), name, contentType, data)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "photo stored", "name", name, "bytes", len(data))
	response.Created(w, dto.PhotoUpload{Name: name, URL: url})
}

// ServePhoto streams a stored photo.
// GET /photos/*
func (h *Handler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	if h.photos == nil {
		response.NotFound(w, "photo")
		return
	}

	obj, err := h.photos.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	defer obj.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		slog.WarnContext(r.Context(), "failed to stream photo", "error", err)
	}
}
