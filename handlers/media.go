package handlers

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/media-gallery/backend/middleware"
	"github.com/media-gallery/backend/models"
	"github.com/media-gallery/backend/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	maxUploadFiles = 10
	defaultPage    = 1
	defaultLimit   = 12
	storagePrefix  = "media/"
)

type MediaHandler struct {
	Media    MediaStore
	Storage  Storage
	Log      *zap.Logger
	MaxBytes int64
}

type UploadResponse struct {
	Message string         `json:"message"`
	Files   []models.Media `json:"files"`
}

// Upload stores multipart image files in S3 and creates a media record per
// file. Per-file uploads run in parallel; any failure fails the request.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if len(files) > maxUploadFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many files (max %d)", maxUploadFiles))
		return
	}
	for _, header := range files {
		if !models.AllowedFileType(header.Header.Get("Content-Type")) {
			writeError(w, http.StatusBadRequest, "Only JPEG and PNG images are allowed")
			return
		}
	}

	title := r.FormValue("title")
	description := r.FormValue("description")
	tags := parseTags(r.FormValue("tags"))

	results := make([]models.Media, len(files))
	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	for i, header := range files {
		wg.Add(1)
		go func(i int, header *multipart.FileHeader) {
			defer wg.Done()
			media, err := h.uploadOne(r, user.ID, header, title, description, tags)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = *media
		}(i, header)
	}
	wg.Wait()

	if firstErr != nil {
		h.Log.Error("media upload failed", zap.Error(firstErr), zap.String("user_id", user.ID.Hex()))
		writeError(w, http.StatusInternalServerError, "Error uploading files")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Message: "Files uploaded successfully",
		Files:   results,
	})
}

func (h *MediaHandler) uploadOne(r *http.Request, owner primitive.ObjectID, header *multipart.FileHeader, title, description string, tags []string) (*models.Media, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	key, err := h.Storage.Upload(r.Context(), storagePrefix, header.Filename, file, contentType)
	if err != nil {
		return nil, err
	}

	entryTitle := title
	if entryTitle == "" {
		entryTitle = header.Filename
	}
	media := &models.Media{
		Title:       entryTitle,
		Description: description,
		Tags:        tags,
		FileURL:     h.Storage.ObjectURL(key),
		StorageKey:  key,
		UploadedBy:  owner,
		FileType:    contentType,
		FileSize:    header.Size,
		Shared:      false,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := h.Media.InsertMedia(r.Context(), media)
	if err != nil {
		return nil, err
	}
	media.ID = id
	return media, nil
}

// ListPage is the pagination envelope for media listings.
type ListPage struct {
	MediaFiles  []models.Media `json:"mediaFiles"`
	TotalPages  int64          `json:"totalPages"`
	CurrentPage int64          `json:"currentPage"`
	Total       int64          `json:"total"`
}

// ListMine returns the requester's own media, paginated and optionally
// filtered by tags.
func (h *MediaHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	page, limit, tags := listParams(r)
	result, err := h.Media.ListOwnMedia(r.Context(), user.ID, tags, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching media files")
		return
	}
	writeJSON(w, http.StatusOK, listPage(result, page, limit))
}

// ListShared returns media any authenticated user may see.
func (h *MediaHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	page, limit, tags := listParams(r)
	result, err := h.Media.ListSharedMedia(r.Context(), tags, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching shared media files")
		return
	}
	writeJSON(w, http.StatusOK, listPage(result, page, limit))
}

type UpdateMediaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Shared      *bool  `json:"shared"`
}

// Update edits media metadata. Owner or admin only.
func (h *MediaHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, media, done := h.authorizedMedia(w, r)
	if done {
		return
	}
	var req UpdateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	upd := store.MediaUpdate{Shared: req.Shared}
	if req.Title != "" {
		upd.Title = &req.Title
	}
	if req.Description != "" {
		upd.Description = &req.Description
	}
	if req.Tags != "" {
		upd.Tags = parseTags(req.Tags)
	}
	if err := h.Media.UpdateMedia(r.Context(), media.ID, upd); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error updating media")
		return
	}
	updated, err := h.Media.MediaByID(r.Context(), media.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error updating media")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Media updated successfully",
		"media":   updated,
	})
}

// Delete removes the record and, best effort, the remote copy. The two
// deletes are not atomic; a stranded remote object is only logged.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, media, done := h.authorizedMedia(w, r)
	if done {
		return
	}
	storageKey, err := h.Media.DeleteMedia(r.Context(), media.ID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error deleting media")
		return
	}
	if storageKey != "" {
		if err := h.Storage.Delete(r.Context(), storageKey); err != nil {
			h.Log.Warn("failed to delete remote object",
				zap.Error(err), zap.String("storage_key", storageKey))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Media deleted successfully"})
}

// authorizedMedia loads the media named in the URL and enforces the
// owner-or-admin rule. When done is true a response has been written.
func (h *MediaHandler) authorizedMedia(w http.ResponseWriter, r *http.Request) (*models.User, *models.Media, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, nil, true
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid media id")
		return nil, nil, true
	}
	media, err := h.Media.MediaByID(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Media not found")
			return nil, nil, true
		}
		writeError(w, http.StatusInternalServerError, "Error fetching media")
		return nil, nil, true
	}
	if media.UploadedBy != user.ID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "Not authorized to modify this media")
		return nil, nil, true
	}
	return user, media, false
}

type DownloadZipRequest struct {
	MediaIDs []string `json:"mediaIds"`
}

// DownloadZip streams the requested media as a single ZIP attachment.
// Entries keep the input-id order; a failed remote fetch skips that entry
// rather than aborting the archive, so the client cannot tell a complete
// archive from one missing entries.
func (h *MediaHandler) DownloadZip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	var req DownloadZipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.MediaIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No media files selected for download")
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.MediaIDs))
	for _, raw := range req.MediaIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid media id")
			return
		}
		ids = append(ids, id)
	}

	accessible, err := h.Media.AccessibleMedia(r.Context(), ids, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating ZIP file")
		return
	}
	if len(accessible) == 0 {
		writeError(w, http.StatusNotFound, "No accessible media files found")
		return
	}

	// Restore input order; Mongo's $in does not preserve it.
	byID := make(map[primitive.ObjectID]*models.Media, len(accessible))
	for i := range accessible {
		byID[accessible[i].ID] = &accessible[i]
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=media-%d.zip", time.Now().UnixMilli()))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	zw := zip.NewWriter(w)
	for _, id := range ids {
		media, ok := byID[id]
		if !ok {
			continue
		}
		if err := h.appendEntry(r, zw, media); err != nil {
			h.Log.Warn("skipping media in ZIP export",
				zap.Error(err), zap.String("media_id", media.ID.Hex()))
			continue
		}
		if err := zw.Flush(); err != nil {
			h.Log.Warn("ZIP stream write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := zw.Close(); err != nil {
		h.Log.Warn("failed to finalize ZIP stream", zap.Error(err))
	}
}

// appendEntry fetches one object from storage and copies it into the
// archive without buffering the whole file.
func (h *MediaHandler) appendEntry(r *http.Request, zw *zip.Writer, media *models.Media) error {
	body, _, err := h.Storage.GetObject(r.Context(), media.StorageKey)
	if err != nil {
		return err
	}
	defer body.Close()
	entry, err := zw.Create(media.ArchiveName())
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, body)
	return err
}

func listParams(r *http.Request) (page, limit int64, tags []string) {
	page = defaultPage
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64); err == nil && v > 0 {
		page = v
	}
	limit = defaultLimit
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	return page, limit, parseTags(r.URL.Query().Get("tags"))
}

func listPage(result *store.MediaPage, page, limit int64) ListPage {
	return ListPage{
		MediaFiles:  result.Items,
		TotalPages:  (result.Total + limit - 1) / limit,
		CurrentPage: page,
		Total:       result.Total,
	}
}

func parseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
