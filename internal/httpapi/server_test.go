package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/umarkhanovv/roadwatch/internal/cache"
	"github.com/umarkhanovv/roadwatch/internal/detection"
	"github.com/umarkhanovv/roadwatch/internal/inference"
	"github.com/umarkhanovv/roadwatch/internal/models"
	"github.com/umarkhanovv/roadwatch/internal/notify"
	"github.com/umarkhanovv/roadwatch/internal/reports"
	"github.com/umarkhanovv/roadwatch/internal/testutil"
	"github.com/umarkhanovv/roadwatch/internal/uploads"
)

type testEnv struct {
	handler http.Handler
	runner  *reports.GoroutineRunner
	hub     *notify.Hub
	uploads *uploads.Store
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	logger := testutil.NullLogger()

	store, err := uploads.NewStore(t.TempDir(), maxUpload, logger)
	if err != nil {
		t.Fatalf("uploads.NewStore() error = %v", err)
	}

	listCache := cache.NewMemory(time.Minute)
	t.Cleanup(func() { listCache.Close() })

	adapter := detection.NewAdapter(detection.OfflineDetector{}, 0.40, time.Second, logger)
	runner := reports.NewGoroutineRunner(logger)
	hub := notify.NewHub(logger)

	svc := reports.NewService(reports.Options{
		Store:    reports.NewMemoryStore(logger),
		Analyzer: inference.NewOrchestrator(adapter, nil, inference.Config{}, logger),
		Notifier: hub,
		Runner:   runner,
		Cache:    listCache,
		Logger:   logger,
	})

	return &testEnv{
		handler: New(svc, store, hub, []string{"*"}, logger).Handler(),
		runner:  runner,
		hub:     hub,
		uploads: store,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newUploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       interface{}
		wantStatus int
	}{
		{
			name:       "success response",
			status:     http.StatusOK,
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "submit response",
			status:     http.StatusOK,
			data:       models.SubmitResponse{ReportID: 1, Status: models.ReportStatusPending},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", contentType)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{name: "bad request", status: http.StatusBadRequest, code: "invalid_input", message: "latitude is required"},
		{name: "not found", status: http.StatusNotFound, code: "not_found", message: "report not found"},
		{name: "internal error", status: http.StatusInternalServerError, code: "internal_error", message: "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.status, tt.code, tt.message)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}

			var response map[string]string
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if response["code"] != tt.code {
				t.Errorf("code = %s, want %s", response["code"], tt.code)
			}
			if response["message"] != tt.message {
				t.Errorf("message = %s, want %s", response["message"], tt.message)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "preflight", allowed: []string{"*"}, method: http.MethodOptions, origin: "https://x.example", wantOrigin: "*", wantStatus: http.StatusOK},
		{name: "wildcard GET", allowed: []string{"*"}, method: http.MethodGet, wantOrigin: "*", wantStatus: http.StatusTeapot},
		{name: "listed origin", allowed: []string{"https://map.example"}, method: http.MethodGet, origin: "https://map.example", wantOrigin: "https://map.example", wantStatus: http.StatusTeapot},
		{name: "unlisted origin", allowed: []string{"https://map.example"}, method: http.MethodGet, origin: "https://evil.example", wantOrigin: "", wantStatus: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{allowedOrigins: tt.allowed, logger: testutil.NullLogger()}
			req := httptest.NewRequest(tt.method, "/api/reports", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			s.corsMiddleware(handler)(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, uploads.DefaultMaxBytes)
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestSubmitReportEndToEnd(t *testing.T) {
	env := newTestEnv(t, uploads.DefaultMaxBytes)

	req := newUploadRequest(t, map[string]string{
		"latitude":    "1",
		"longitude":   "2",
		"description": "near the bridge",
	}, "road.png", []byte("not really a png"))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var submitted models.SubmitResponse
	if err := json.NewDecoder(w.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.ReportID == 0 || submitted.Status != models.ReportStatusPending || submitted.Message != queuedMessage {
		t.Errorf("submit response = %+v", submitted)
	}

	env.runner.Wait()

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []models.Report
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("reports = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != submitted.ReportID || got.Latitude != 1 || got.Longitude != 2 {
		t.Errorf("report = %+v", got)
	}
	if !got.Status.IsTerminal() {
		t.Errorf("status = %s, want terminal", got.Status)
	}
	if got.FileType != models.MediaKindImage || !strings.HasSuffix(got.Filename, ".png") {
		t.Errorf("file fields = %s %s", got.FileType, got.Filename)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/detections", nil))
	var dets []models.Detection
	if err := json.NewDecoder(w.Body).Decode(&dets); err != nil {
		t.Fatalf("decode detections: %v", err)
	}
	if len(dets) != len(got.Detections) {
		t.Errorf("detections = %d, report has %d", len(dets), len(got.Detections))
	}
	for _, d := range dets {
		if d.ReportID != got.ID || d.Latitude != 1 || d.Longitude != 2 {
			t.Errorf("detection = %+v", d)
		}
	}
}

func TestGetReportByID(t *testing.T) {
	env := newTestEnv(t, uploads.DefaultMaxBytes)
	env.do(newUploadRequest(t, map[string]string{"latitude": "10", "longitude": "20"}, "a.jpg", []byte("x")))
	env.runner.Wait()

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{path: "/api/reports/1", wantStatus: http.StatusOK},
		{path: "/api/reports/99", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{path: "/api/reports/abc", wantStatus: http.StatusBadRequest, wantCode: "invalid_id"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}
			var body map[string]string
			json.NewDecoder(w.Body).Decode(&body)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestSubmitReportRejects(t *testing.T) {
	valid := map[string]string{"latitude": "1", "longitude": "2"}

	tests := []struct {
		name       string
		fields     map[string]string
		filename   string
		content    []byte
		maxUpload  int64
		wantStatus int
		wantCode   string
	}{
		{name: "unsupported extension", fields: valid, filename: "road.gif", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "unsupported_file_type"},
		{name: "missing file", fields: valid, wantStatus: http.StatusBadRequest, wantCode: "missing_file"},
		{name: "missing latitude", fields: map[string]string{"longitude": "2"}, filename: "a.png", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "non-numeric longitude", fields: map[string]string{"latitude": "1", "longitude": "east"}, filename: "a.png", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "latitude out of range", fields: map[string]string{"latitude": "95", "longitude": "2"}, filename: "a.png", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "file too large", fields: valid, filename: "a.mp4", content: bytes.Repeat([]byte("v"), 64), maxUpload: 16, wantStatus: http.StatusRequestEntityTooLarge, wantCode: "file_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxUpload := tt.maxUpload
			if maxUpload == 0 {
				maxUpload = uploads.DefaultMaxBytes
			}
			env := newTestEnv(t, maxUpload)

			w := env.do(newUploadRequest(t, tt.fields, tt.filename, tt.content))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}

			entries, err := os.ReadDir(env.uploads.Dir())
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("rejected upload left %d files behind", len(entries))
			}

			list := env.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
			if got := strings.TrimSpace(list.Body.String()); got != "[]" {
				t.Errorf("reports after rejection = %s", got)
			}
		})
	}
}

func TestServeUpload(t *testing.T) {
	env := newTestEnv(t, uploads.DefaultMaxBytes)
	saved, err := env.uploads.Save("pic.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/uploads/"+saved.Name, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}

	for _, path := range []string{"/uploads/missing.jpg", "/uploads/.hidden", "/uploads/"} {
		if w := env.do(httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}
}

func TestStreamReceivesProcessedReport(t *testing.T) {
	env := newTestEnv(t, uploads.DefaultMaxBytes)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	body, contentType := multipartBody(t, map[string]string{"latitude": "3.5", "longitude": "-7.25"}, "clip.jpg", []byte("frame"))
	resp, err := http.Post(srv.URL+"/api/reports", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}

	var event models.ReportEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Event != models.EventNewReport {
		t.Errorf("event = %q", event.Event)
	}
	if event.Report.Latitude != 3.5 || event.Report.Longitude != -7.25 || !event.Report.Status.IsTerminal() {
		t.Errorf("report = %+v", event.Report)
	}
	if event.Report.Detections == nil {
		t.Error("detections should be an array")
	}

	env.runner.Wait()
}
