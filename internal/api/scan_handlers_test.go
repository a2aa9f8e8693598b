package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mealscan/mealscan/internal/resolve"
	"github.com/mealscan/mealscan/internal/storage"
)

type fakeScanService struct {
	session   *resolve.ScanSession
	startErr  error
	lastReq   resolve.ScanRequest
	confirmed []string
	corrected []string
	stopped   []string
}

func (f *fakeScanService) StartScan(req resolve.ScanRequest) (*resolve.ScanSession, error) {
	f.lastReq = req
	return f.session, f.startErr
}

func (f *fakeScanService) GetSession(sessionID string) (*resolve.ScanSession, bool) {
	if f.session != nil && f.session.ID == sessionID {
		return f.session, true
	}
	return nil, false
}

func (f *fakeScanService) StopScan(sessionID string) error {
	f.stopped = append(f.stopped, sessionID)
	return nil
}

func (f *fakeScanService) Confirm(_ context.Context, sessionID, itemID string) error {
	f.confirmed = append(f.confirmed, sessionID+"/"+itemID)
	return nil
}

func (f *fakeScanService) Correct(_ context.Context, sessionID, correctedName string) error {
	if correctedName == "" {
		return fmt.Errorf("corrected name is required")
	}
	f.corrected = append(f.corrected, sessionID+"/"+correctedName)
	return nil
}

func newTestRouter(t *testing.T, service *fakeScanService) http.Handler {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("creating storage: %v", err)
	}
	app := &App{Storage: store, MaxUploadSize: 10 << 20}
	return NewRouter(app, NewScanHandlers(service, app))
}

func photoRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("photo", "scan.png")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/scan/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestStartScanHandler(t *testing.T) {
	service := &fakeScanService{session: &resolve.ScanSession{ID: "s-1", Status: "analyzing"}}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, photoRequest(t, map[string]string{
		"user_id":        "u1",
		"selected_label": "granola",
		"visibility":     "0.8",
	}))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "s-1") {
		t.Errorf("response should carry the session id: %s", rec.Body.String())
	}
	if service.lastReq.UserID != "u1" || service.lastReq.SelectedLabel != "granola" {
		t.Errorf("form fields not forwarded: %+v", service.lastReq)
	}
	if service.lastReq.Visibility != 0.8 {
		t.Errorf("expected visibility 0.8, got %v", service.lastReq.Visibility)
	}
	if service.lastReq.Image == nil || len(service.lastReq.ImageData) == 0 {
		t.Error("decoded image and raw bytes must both be forwarded")
	}
}

func TestStartScanHandlerRejectsBadUploads(t *testing.T) {
	service := &fakeScanService{session: &resolve.ScanSession{ID: "s-1"}}
	router := newTestRouter(t, service)

	t.Run("missing photo", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		writer.WriteField("user_id", "u1")
		writer.Close()

		req := httptest.NewRequest("POST", "/scan/", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("undecodable image", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, _ := writer.CreateFormFile("photo", "scan.png")
		part.Write([]byte("not an image"))
		writer.Close()

		req := httptest.NewRequest("POST", "/scan/", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid visibility", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, photoRequest(t, map[string]string{"visibility": "1.7"}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestScanStreamHandler(t *testing.T) {
	session := &resolve.ScanSession{
		ID:      "s-1",
		Status:  "complete",
		Updates: make(chan resolve.SessionUpdate, 2),
	}
	session.Updates <- resolve.SessionUpdate{Type: "analyzing", Data: map[string]string{"session_id": "s-1"}}
	session.Updates <- resolve.SessionUpdate{Type: "complete", Data: map[string]string{"name": "Greek Yogurt"}}
	close(session.Updates)

	service := &fakeScanService{session: session}
	router := newTestRouter(t, service)

	req := httptest.NewRequest("GET", "/scan/s-1/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: analyzing") || !strings.Contains(body, "event: complete") {
		t.Errorf("expected both events in stream, got: %s", body)
	}
	if !strings.Contains(body, "Greek Yogurt") {
		t.Errorf("event payload missing: %s", body)
	}
}

func TestScanStreamHandlerUnknownSession(t *testing.T) {
	router := newTestRouter(t, &fakeScanService{})

	req := httptest.NewRequest("GET", "/scan/missing/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestConfirmAndCorrectHandlers(t *testing.T) {
	session := &resolve.ScanSession{ID: "s-1"}
	service := &fakeScanService{session: session}
	router := newTestRouter(t, service)

	form := url.Values{"item_id": {"r-1"}}
	req := httptest.NewRequest("POST", "/scan/s-1/confirm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(service.confirmed) != 1 || service.confirmed[0] != "s-1/r-1" {
		t.Errorf("unexpected confirm calls: %v", service.confirmed)
	}

	form = url.Values{"name": {"peanut butter"}}
	req = httptest.NewRequest("POST", "/scan/s-1/correct", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("correct: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(service.corrected) != 1 || service.corrected[0] != "s-1/peanut butter" {
		t.Errorf("unexpected correct calls: %v", service.corrected)
	}

	req = httptest.NewRequest("POST", "/scan/s-1/correct", strings.NewReader("name="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty correction should 400, got %d", rec.Code)
	}
}

func TestGetSessionHandler(t *testing.T) {
	session := &resolve.ScanSession{ID: "s-1", Status: "needs_input", Barcode: "4006381333931"}
	service := &fakeScanService{session: session}
	router := newTestRouter(t, service)

	req := httptest.NewRequest("GET", "/scan/s-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "needs_input") || !strings.Contains(rec.Body.String(), "4006381333931") {
		t.Errorf("unexpected session payload: %s", rec.Body.String())
	}
}
