package service

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/docgate/internal/convert"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/engine/enginetest"
	"github.com/bigkaa/docgate/internal/intake"
	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/packager"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// fakeDispatcher записывает в область converted заданное число файлов.
type fakeDispatcher struct {
	areas   *filestore.Areas
	outputs int
	ext     string
	err     error
	inputs  []string
}

func (f *fakeDispatcher) Convert(_ context.Context, op model.Operation, inputs []string) (*convert.Artifact, error) {
	f.inputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	art := &convert.Artifact{Operation: op}
	for i := 0; i < f.outputs; i++ {
		p := f.areas.Converted.Reserve("out", f.ext)
		if err := os.WriteFile(p, []byte("result"), 0o640); err != nil {
			return nil, err
		}
		art.Paths = append(art.Paths, p)
	}
	return art, nil
}

func (f *fakeDispatcher) ConvertText(_ context.Context, op model.Operation, text string) (*convert.Artifact, error) {
	if op == model.OpTextFormat {
		return &convert.Artifact{Operation: op, Text: convert.FormatText(text)}, nil
	}
	p := f.areas.Converted.Reserve("extracted_text", "docx")
	if err := os.WriteFile(p, []byte(text), 0o640); err != nil {
		return nil, err
	}
	return &convert.Artifact{Operation: op, Paths: []string{p}}, nil
}

func (f *fakeDispatcher) EngineStatus() map[string]bool {
	return map[string]bool{"tesseract": true}
}

func newConversionService(t *testing.T, d *fakeDispatcher, deleteInputs bool) (*ConversionService, *filestore.Areas, *jobs.MemoryRepository) {
	t.Helper()
	areas := testAreas(t)
	d.areas = areas
	journal := jobs.NewMemoryRepository()
	svc := NewConversionService(areas, intake.New(true), d, packager.New(areas.Converted),
		journal, ConversionOptions{DeleteInputs: deleteInputs}, testLogger())
	return svc, areas, journal
}

func pdfUpload(name string) Upload {
	return Upload{Filename: name, Reader: bytes.NewReader(enginetest.BuildPDF("Hello"))}
}

func entryCount(t *testing.T, fs *filestore.FileStore) int {
	t.Helper()
	entries, err := fs.Entries()
	if err != nil {
		t.Fatalf("Ошибка чтения области %s: %v", fs.Name(), err)
	}
	return len(entries)
}

func onlyJob(t *testing.T, journal *jobs.MemoryRepository) *model.Job {
	t.Helper()
	list, total, err := journal.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("Ошибка чтения журнала: %v", err)
	}
	if total != 1 {
		t.Fatalf("ожидалась 1 запись журнала, получено %d", total)
	}
	return list[0]
}

func TestConvertFiles_SingleOutput(t *testing.T) {
	d := &fakeDispatcher{outputs: 1, ext: "docx"}
	svc, areas, journal := newConversionService(t, d, true)

	result, err := svc.ConvertFiles(context.Background(), model.OpPDFToDOCX,
		[]Upload{pdfUpload("../reports/Report.pdf")}, "user-1")
	if err != nil {
		t.Fatalf("ConvertFiles: %v", err)
	}
	if result.DownloadName != "Report.docx" {
		t.Errorf("DownloadName: ожидалось Report.docx, получено %q", result.DownloadName)
	}
	if !exists(result.Path) {
		t.Errorf("результат не существует: %s", result.Path)
	}
	if len(d.inputs) != 1 || filepath.Dir(d.inputs[0]) != areas.Uploads.Dir() {
		t.Errorf("диспетчер получил неожиданные входы: %v", d.inputs)
	}
	if n := entryCount(t, areas.Uploads); n != 0 {
		t.Errorf("входной файл не удалён после успеха: %d записей", n)
	}

	job := onlyJob(t, journal)
	if job.Status != model.JobSucceeded {
		t.Errorf("Status: ожидалось succeeded, получено %s", job.Status)
	}
	if job.Subject != "user-1" {
		t.Errorf("Subject: ожидалось user-1, получено %q", job.Subject)
	}
	if job.InputName != "Report.pdf" {
		t.Errorf("InputName: ожидалось Report.pdf, получено %q", job.InputName)
	}
	if len(job.InputChecksum) != 64 {
		t.Errorf("InputChecksum: ожидался SHA-256, получено %q", job.InputChecksum)
	}
	if job.OutputName != filepath.Base(result.Path) {
		t.Errorf("OutputName: ожидалось %s, получено %s", filepath.Base(result.Path), job.OutputName)
	}
}

func TestConvertFiles_KeepInputs(t *testing.T) {
	d := &fakeDispatcher{outputs: 1, ext: "docx"}
	svc, areas, _ := newConversionService(t, d, false)

	if _, err := svc.ConvertFiles(context.Background(), model.OpPDFToDOCX, []Upload{pdfUpload("a.pdf")}, ""); err != nil {
		t.Fatalf("ConvertFiles: %v", err)
	}
	if n := entryCount(t, areas.Uploads); n != 1 {
		t.Errorf("ожидался 1 сохранённый вход, получено %d", n)
	}
}

func TestConvertFiles_ManyOutputsArePackaged(t *testing.T) {
	d := &fakeDispatcher{outputs: 3, ext: "jpg"}
	svc, areas, journal := newConversionService(t, d, true)

	result, err := svc.ConvertFiles(context.Background(), model.OpPDFToJPG, []Upload{pdfUpload("scan.pdf")}, "")
	if err != nil {
		t.Fatalf("ConvertFiles: %v", err)
	}
	if result.DownloadName != "scan_images.zip" {
		t.Errorf("DownloadName: ожидалось scan_images.zip, получено %q", result.DownloadName)
	}

	zr, err := zip.OpenReader(result.Path)
	if err != nil {
		t.Fatalf("Ошибка открытия архива: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Errorf("ожидалось 3 записи в архиве, получено %d", len(zr.File))
	}

	// В области converted остаётся только архив
	if n := entryCount(t, areas.Converted); n != 1 {
		t.Errorf("ожидалась 1 запись в converted, получено %d", n)
	}
	if job := onlyJob(t, journal); job.OutputCount != 3 {
		t.Errorf("OutputCount: ожидалось 3, получено %d", job.OutputCount)
	}
}

func TestConvertFiles_SinglePageNotPackaged(t *testing.T) {
	d := &fakeDispatcher{outputs: 1, ext: "jpg"}
	svc, _, _ := newConversionService(t, d, true)

	result, err := svc.ConvertFiles(context.Background(), model.OpPDFToJPG, []Upload{pdfUpload("scan.pdf")}, "")
	if err != nil {
		t.Fatalf("ConvertFiles: %v", err)
	}
	if !strings.HasSuffix(result.Path, ".jpg") {
		t.Errorf("ожидался JPEG, получено %s", result.Path)
	}
	if result.DownloadName != "scan_page_1.jpg" {
		t.Errorf("DownloadName: ожидалось scan_page_1.jpg, получено %q", result.DownloadName)
	}
}

func TestConvertFiles_InvalidFileType(t *testing.T) {
	d := &fakeDispatcher{outputs: 1, ext: "docx"}
	svc, areas, journal := newConversionService(t, d, true)

	_, err := svc.ConvertFiles(context.Background(), model.OpPDFToDOCX,
		[]Upload{{Filename: "notes.txt", Reader: strings.NewReader("text")}}, "")
	if !model.IsKind(err, model.KindInvalidFileType) {
		t.Fatalf("ожидалась InvalidFileType, получено %v", err)
	}
	if d.inputs != nil {
		t.Error("диспетчер не должен вызываться")
	}
	if n := entryCount(t, areas.Uploads); n != 0 {
		t.Errorf("файл не должен сохраняться: %d записей", n)
	}
	job := onlyJob(t, journal)
	if job.Status != model.JobFailed || job.ErrorKind != model.KindInvalidFileType {
		t.Errorf("неожиданная запись журнала: %+v", job)
	}
}

func TestConvertFiles_NoFiles(t *testing.T) {
	svc, _, _ := newConversionService(t, &fakeDispatcher{}, true)

	_, err := svc.ConvertFiles(context.Background(), model.OpJPGToPDF, nil, "")
	if !model.IsKind(err, model.KindInvalidFileType) {
		t.Fatalf("ожидалась InvalidFileType, получено %v", err)
	}
}

func TestConvertFiles_MimeMismatchRemovesStaged(t *testing.T) {
	d := &fakeDispatcher{outputs: 1, ext: "docx"}
	svc, areas, _ := newConversionService(t, d, true)

	_, err := svc.ConvertFiles(context.Background(), model.OpPDFToDOCX,
		[]Upload{{Filename: "fake.pdf", Reader: strings.NewReader("just plain text, no signature")}}, "")
	if !model.IsKind(err, model.KindMimeMismatch) {
		t.Fatalf("ожидалась MimeMismatch, получено %v", err)
	}
	if n := entryCount(t, areas.Uploads); n != 0 {
		t.Errorf("отклонённый файл не удалён: %d записей", n)
	}
}

func TestConvertFiles_DispatcherErrorKeepsInputs(t *testing.T) {
	d := &fakeDispatcher{err: model.NewError(model.KindConversionFailed, nil, "движок не создал результат")}
	svc, areas, journal := newConversionService(t, d, true)

	_, err := svc.ConvertFiles(context.Background(), model.OpPDFToDOCX, []Upload{pdfUpload("a.pdf")}, "")
	if !model.IsKind(err, model.KindConversionFailed) {
		t.Fatalf("ожидалась ConversionFailed, получено %v", err)
	}
	// Вход остаётся до очистки
	if n := entryCount(t, areas.Uploads); n != 1 {
		t.Errorf("ожидался 1 вход в uploads, получено %d", n)
	}
	if job := onlyJob(t, journal); job.ErrorKind != model.KindConversionFailed {
		t.Errorf("ErrorKind: ожидалось ConversionFailed, получено %s", job.ErrorKind)
	}
}

func TestConvertText(t *testing.T) {
	svc, _, journal := newConversionService(t, &fakeDispatcher{}, true)

	result, err := svc.ConvertText(context.Background(), model.OpTextFormat, "hello   world. how are you", "")
	if err != nil {
		t.Fatalf("ConvertText: %v", err)
	}
	if result.Text != "Hello world. How are you" {
		t.Errorf("Text: получено %q", result.Text)
	}
	if result.Path != "" {
		t.Errorf("текстовая операция не должна создавать файл: %s", result.Path)
	}

	result, err = svc.ConvertText(context.Background(), model.OpTextToDOCX, "abc", "")
	if err != nil {
		t.Fatalf("ConvertText: %v", err)
	}
	if result.DownloadName != "extracted_text.docx" || !exists(result.Path) {
		t.Errorf("неожиданный результат: %+v", result)
	}

	_, total, _ := journal.List(context.Background(), 10, 0)
	if total != 2 {
		t.Errorf("ожидалось 2 записи журнала, получено %d", total)
	}
}
