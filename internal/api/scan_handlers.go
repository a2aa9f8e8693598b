package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mealscan/mealscan/internal/resolve"
	"github.com/mealscan/mealscan/internal/storage"
)

// ScanService is the slice of the resolution engine the handlers need.
type ScanService interface {
	StartScan(req resolve.ScanRequest) (*resolve.ScanSession, error)
	GetSession(sessionID string) (*resolve.ScanSession, bool)
	StopScan(sessionID string) error
	Confirm(ctx context.Context, sessionID, itemID string) error
	Correct(ctx context.Context, sessionID, correctedName string) error
}

type ScanHandlers struct {
	scanService ScanService
	app         *App
}

func NewScanHandlers(scanService ScanService, app *App) *ScanHandlers {
	return &ScanHandlers{
		scanService: scanService,
		app:         app,
	}
}

// StartScanHandler accepts a multipart photo upload and opens a
// resolution session. The response carries the session id; progress
// streams over the session's SSE endpoint.
func (h *ScanHandlers) StartScanHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.app.MaxUploadSize)

	if err := r.ParseMultipartForm(h.app.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Photo too large")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to get photo")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		writeError(w, http.StatusBadRequest, "Only image uploads are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read photo")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Photo is not a decodable image")
		return
	}

	visibility := 1.0
	if raw := r.FormValue("visibility"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeError(w, http.StatusBadRequest, "Visibility must be between 0 and 1")
			return
		}
		visibility = parsed
	}

	filename, err := h.app.Storage.SaveFile(bytesFile{bytes.NewReader(data)}, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		log.Printf("[API] Photo save failed: %v", err)
		// The scan can still run; only the review copy is lost.
	}

	session, err := h.scanService.StartScan(resolve.ScanRequest{
		UserID:        r.FormValue("user_id"),
		Image:         img,
		ImageData:     data,
		SelectedLabel: r.FormValue("selected_label"),
		Visibility:    visibility,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start scan: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": session.ID,
		"photo":      filename,
		"status":     session.Status,
	})
}

// ScanStreamHandler streams session updates as server-sent events.
func (h *ScanHandlers) ScanStreamHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, exists := h.scanService.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-session.Updates:
			if !ok {
				return
			}

			data, err := json.Marshal(update.Data)
			if err != nil {
				log.Printf("Error marshaling update: %v", err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Type, string(data))
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}

// GetSessionHandler returns the session's current state, for clients
// that poll instead of streaming.
func (h *ScanHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, exists := h.scanService.GetSession(sessionID)
	if !exists {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  session.ID,
		"status":      session.Status,
		"seeds":       session.Seeds,
		"decision":    session.Decision,
		"scan_log_id": session.ScanLogID,
		"barcode":     session.Barcode,
	})
}

func (h *ScanHandlers) StopScanHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.scanService.StopScan(sessionID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *ScanHandlers) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	itemID := r.FormValue("item_id")

	if err := h.scanService.Confirm(r.Context(), sessionID, itemID); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to confirm: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *ScanHandlers) CorrectHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	corrected := r.FormValue("name")

	if err := h.scanService.Correct(r.Context(), sessionID, corrected); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to correct: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "corrected"})
}

type bytesFile struct {
	*bytes.Reader
}

func (bytesFile) Close() error { return nil }
