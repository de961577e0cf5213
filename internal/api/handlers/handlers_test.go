package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/docgate/internal/config"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/service"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeConverter запоминает вызовы и возвращает заданный результат.
type fakeConverter struct {
	op        model.Operation
	filenames []string
	contents  []string
	text      string
	result    *service.Result
	err       error
}

func (f *fakeConverter) ConvertFiles(_ context.Context, op model.Operation, uploads []service.Upload, _ string) (*service.Result, error) {
	f.op = op
	for _, u := range uploads {
		data, _ := io.ReadAll(u.Reader)
		f.filenames = append(f.filenames, u.Filename)
		f.contents = append(f.contents, string(data))
	}
	return f.result, f.err
}

func (f *fakeConverter) ConvertText(_ context.Context, op model.Operation, text, _ string) (*service.Result, error) {
	f.op = op
	f.text = text
	return f.result, f.err
}

// fakeDelivery пишет имя файла в тело ответа.
type fakeDelivery struct {
	served *service.Result
}

func (f *fakeDelivery) Serve(w http.ResponseWriter, _ *http.Request, result *service.Result) error {
	f.served = result
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write([]byte(result.DownloadName))
	return nil
}

type fakeEngines map[string]bool

func (f fakeEngines) EngineStatus() map[string]bool { return f }

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(p.content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newConvertRouter(conv *fakeConverter, del *fakeDelivery, maxSize int64) http.Handler {
	h := NewConvertHandler(conv, del, maxSize, testLogger())
	r := chi.NewRouter()
	r.Post("/convert/{operation}", h.Convert)
	r.Post("/ocr", h.OCR)
	r.Post("/edit-text", h.EditText)
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ожидался JSON с ошибкой: %v", err)
	}
	return body.Error.Code
}

func TestConvert_Success(t *testing.T) {
	conv := &fakeConverter{result: &service.Result{Path: "/x/out.docx", DownloadName: "report.docx"}}
	del := &fakeDelivery{}
	router := newConvertRouter(conv, del, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/convert/pdf-to-docx", part{"file", "report.pdf", "%PDF-1.4"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	if conv.op != model.OpPDFToDOCX {
		t.Errorf("операция: ожидалась pdf_to_docx, получено %s", conv.op)
	}
	if len(conv.filenames) != 1 || conv.filenames[0] != "report.pdf" || conv.contents[0] != "%PDF-1.4" {
		t.Errorf("неожиданные входы: %v %v", conv.filenames, conv.contents)
	}
	if del.served == nil || rec.Body.String() != "report.docx" {
		t.Errorf("результат не выдан: %q", rec.Body.String())
	}
}

func TestConvert_JPGToPDF_CollectsAllParts(t *testing.T) {
	conv := &fakeConverter{result: &service.Result{DownloadName: "merged_images.pdf"}}
	router := newConvertRouter(conv, &fakeDelivery{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/convert/jpg-to-pdf",
		part{"files", "a.jpg", "1"},
		part{"files", "b.png", "2"},
		part{"file", "c.jpg", "3"},
	))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	want := []string{"a.jpg", "b.png", "c.jpg"}
	if strings.Join(conv.filenames, ",") != strings.Join(want, ",") {
		t.Errorf("порядок файлов: ожидалось %v, получено %v", want, conv.filenames)
	}
}

func TestConvert_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
		code   string
	}{
		{
			name:   "unknown operation",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/convert/xls-to-pdf", part{"file", "a.xls", "x"}) },
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "missing file part",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/convert/pdf-to-docx", part{"other", "a.pdf", "x"}) },
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/convert/pdf-to-docx", strings.NewReader("{}"))
			},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "two files for single operation",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/convert/pdf-to-docx", part{"file", "a.pdf", "x"}, part{"file", "b.pdf", "y"})
			},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/convert/pdf-to-docx", part{"file", "a.pdf", strings.Repeat("x", 4096)})
			},
			status: http.StatusRequestEntityTooLarge,
			code:   "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConverter{}
			router := newConvertRouter(conv, &fakeDelivery{}, 1024)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req(t))

			if rec.Code != tt.status {
				t.Fatalf("ожидался %d, получено %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if code := decodeError(t, rec); code != tt.code {
				t.Errorf("code: ожидалось %s, получено %s", tt.code, code)
			}
			if conv.op != "" {
				t.Error("сервис не должен вызываться")
			}
		})
	}
}

func TestConvert_ErrorKinds(t *testing.T) {
	tests := []struct {
		kind   model.ErrorKind
		status int
		code   string
	}{
		{model.KindInvalidFileType, http.StatusBadRequest, "INVALID_FILE_TYPE"},
		{model.KindMimeMismatch, http.StatusBadRequest, "MIME_MISMATCH"},
		{model.KindEngineUnavailable, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE"},
		{model.KindConversionFailed, http.StatusInternalServerError, "CONVERSION_FAILED"},
		{model.KindPackagingFailed, http.StatusInternalServerError, "PACKAGING_FAILED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			conv := &fakeConverter{err: model.NewError(tt.kind, nil, "ошибка")}
			router := newConvertRouter(conv, &fakeDelivery{}, 1<<20)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, "/convert/pdf-to-jpg", part{"file", "a.pdf", "x"}))

			if rec.Code != tt.status {
				t.Errorf("ожидался %d, получено %d", tt.status, rec.Code)
			}
			if code := decodeError(t, rec); code != tt.code {
				t.Errorf("code: ожидалось %s, получено %s", tt.code, code)
			}
		})
	}
}

func TestOCR(t *testing.T) {
	conv := &fakeConverter{result: &service.Result{Text: "Распознанный текст"}}
	router := newConvertRouter(conv, &fakeDelivery{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/ocr", part{"file", "scan.PNG", "png"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	if conv.op != model.OpOCRImage {
		t.Errorf("операция: ожидалась ocr_image, получено %s", conv.op)
	}

	var body struct {
		Success       bool   `json:"success"`
		ExtractedText string `json:"extracted_text"`
		Filename      string `json:"filename"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.ExtractedText != "Распознанный текст" || body.Filename != "scan.PNG" {
		t.Errorf("неожиданный ответ: %+v", body)
	}
}

func TestOCR_RoutesPDF(t *testing.T) {
	conv := &fakeConverter{result: &service.Result{}}
	router := newConvertRouter(conv, &fakeDelivery{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/ocr", part{"file", "doc.pdf", "x"}))
	if conv.op != model.OpOCRPDF {
		t.Errorf("операция: ожидалась ocr_pdf, получено %s", conv.op)
	}
}

func TestOCR_UnsupportedExtension(t *testing.T) {
	conv := &fakeConverter{}
	router := newConvertRouter(conv, &fakeDelivery{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/ocr", part{"file", "notes.txt", "x"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался 400, получено %d", rec.Code)
	}
	if code := decodeError(t, rec); code != "INVALID_FILE_TYPE" {
		t.Errorf("code: %s", code)
	}
}

func TestEditText(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		op     model.Operation
	}{
		{"format default", `{"text":"hello.  world"}`, http.StatusOK, model.OpTextFormat},
		{"format explicit", `{"text":"hello","operation":"format"}`, http.StatusOK, model.OpTextFormat},
		{"to docx", `{"text":"hello","operation":"to_docx"}`, http.StatusOK, model.OpTextToDOCX},
		{"unknown operation", `{"text":"hello","operation":"to_pdf"}`, http.StatusBadRequest, ""},
		{"empty text", `{"text":"   "}`, http.StatusBadRequest, ""},
		{"bad json", `{"text":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConverter{result: &service.Result{Text: "Hello. World", DownloadName: "extracted_text.docx"}}
			del := &fakeDelivery{}
			router := newConvertRouter(conv, del, 1<<20)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/edit-text", strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("ожидался %d, получено %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if conv.op != tt.op {
				t.Errorf("операция: ожидалась %q, получено %q", tt.op, conv.op)
			}
			switch tt.op {
			case model.OpTextFormat:
				var body map[string]any
				_ = json.NewDecoder(rec.Body).Decode(&body)
				if body["formatted_text"] != "Hello. World" || body["success"] != true {
					t.Errorf("неожиданный ответ: %v", body)
				}
			case model.OpTextToDOCX:
				if del.served == nil {
					t.Error("DOCX не выдан")
				}
			}
		})
	}
}

func TestJobsHandler(t *testing.T) {
	journal := jobs.NewMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
		"33333333-3333-3333-3333-333333333333",
	}
	for i, id := range ids {
		_ = journal.Record(context.Background(), &model.Job{
			ID: id, Operation: model.OpPDFToDOCX, Status: model.JobSucceeded,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	h := NewJobsHandler(journal, testLogger())
	r := chi.NewRouter()
	r.Get("/api/v1/jobs", h.ListJobs)
	r.Get("/api/v1/jobs/{id}", h.GetJob)

	t.Run("list page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=2", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("ожидался 200, получено %d", rec.Code)
		}
		var resp jobListResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Total != 3 || len(resp.Items) != 2 || !resp.HasMore {
			t.Errorf("неожиданная страница: total=%d items=%d has_more=%v", resp.Total, len(resp.Items), resp.HasMore)
		}
		if resp.Items[0].ID != ids[2] {
			t.Errorf("новые записи должны идти первыми, получено %s", resp.Items[0].ID)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, q := range []string{"limit=0", "limit=1001", "limit=abc", "offset=-1"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?"+q, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: ожидался 400, получено %d", q, rec.Code)
			}
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+ids[0], nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("ожидался 200, получено %d", rec.Code)
		}
		var job model.Job
		_ = json.NewDecoder(rec.Body).Decode(&job)
		if job.ID != ids[0] {
			t.Errorf("ID: ожидалось %s, получено %s", ids[0], job.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("ожидался 404, получено %d", rec.Code)
		}
	})
}

type fakeChecker struct{ err error }

func (f fakeChecker) CheckWritable() error { return f.err }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name    string
		storage error
		journal error
		engines fakeEngines
		status  int
		overall string
	}{
		{"ok", nil, nil, fakeEngines{"tesseract": true}, http.StatusOK, "ok"},
		{"engine missing", nil, nil, fakeEngines{"tesseract": false}, http.StatusOK, "degraded"},
		{"storage fail", errors.New("read-only"), nil, fakeEngines{}, http.StatusServiceUnavailable, statusFail},
		{"journal fail", nil, errors.New("db down"), fakeEngines{"tesseract": false}, http.StatusServiceUnavailable, statusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakeChecker{tt.storage}, fakePinger{tt.journal}, tt.engines)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.status {
				t.Errorf("ожидался %d, получено %d", tt.status, rec.Code)
			}
			var body map[string]any
			_ = json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.overall {
				t.Errorf("status: ожидалось %s, получено %v", tt.overall, body["status"])
			}
		})
	}
}

type fakeDeps map[string]bool

func (f fakeDeps) Health() map[string]bool { return f }

func TestHealthReady_Dependencies(t *testing.T) {
	h := NewHealthHandler(fakeChecker{}, fakePinger{}, fakeEngines{"tesseract": true}).
		WithDependencies(fakeDeps{"jwks": false})
	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался 200, получено %d", rec.Code)
	}
	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" {
		t.Errorf("status: ожидалось degraded, получено %s", body.Status)
	}
	if body.Checks["dependencies"]["status"] != "degraded" {
		t.Errorf("dependencies: ожидалось degraded, получено %v", body.Checks["dependencies"])
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(fakeChecker{}, fakePinger{}, fakeEngines{})
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался 200, получено %d", rec.Code)
	}
}

func TestGetInfo(t *testing.T) {
	root := t.TempDir()
	areas, err := filestore.OpenAreas(filepath.Join(root, "u"), filepath.Join(root, "c"), filepath.Join(root, "t"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{MaxUploadSize: 16 << 20, Retention: 24 * time.Hour}

	h := NewSystemHandler(cfg, areas, fakeEngines{"pdftoppm": true})
	rec := httptest.NewRecorder()
	h.GetInfo(rec, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

	var resp infoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Service != "docgate" || len(resp.Operations) != 8 || len(resp.Areas) != 3 {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
	if resp.Retention != "24h0m0s" || resp.AuthEnabled {
		t.Errorf("retention/auth: %s %v", resp.Retention, resp.AuthEnabled)
	}
	if !resp.Engines["pdftoppm"] {
		t.Errorf("engines: %v", resp.Engines)
	}
}
