package intake

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/docgate/internal/domain/model"
)

func TestValidateName(t *testing.T) {
	v := New(true)

	tests := []struct {
		name     string
		filename string
		op       model.Operation
		wantErr  bool
	}{
		{"pdf для pdf_to_docx", "report.pdf", model.OpPDFToDOCX, false},
		{"регистр не важен", "REPORT.PDF", model.OpPDFToDOCX, false},
		{"несколько точек", "scan.v2.final.pdf", model.OpPDFToJPG, false},
		{"docx для docx_to_pdf", "letter.docx", model.OpDOCXToPDF, false},
		{"doc для docx_to_pdf", "letter.doc", model.OpDOCXToPDF, false},
		{"jpeg для jpg_to_pdf", "photo.jpeg", model.OpJPGToPDF, false},
		{"tiff для ocr_image", "fax.TIFF", model.OpOCRImage, false},
		{"pdf для jpg_to_pdf", "report.pdf", model.OpJPGToPDF, true},
		{"gif не поддерживается", "anim.gif", model.OpJPGToPDF, true},
		{"без расширения", "README", model.OpPDFToDOCX, true},
		{"точка в конце", "report.", model.OpPDFToDOCX, true},
		{"текстовая операция", "notes.txt", model.OpTextFormat, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateName(tt.filename, tt.op)
			if tt.wantErr {
				if !model.IsKind(err, model.KindInvalidFileType) {
					t.Errorf("ожидалась InvalidFileType, получено %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("неожиданная ошибка: %v", err)
			}
		})
	}
}

func TestOperationForOCR(t *testing.T) {
	tests := []struct {
		filename string
		want     model.Operation
		wantErr  bool
	}{
		{"scan.pdf", model.OpOCRPDF, false},
		{"photo.JPG", model.OpOCRImage, false},
		{"diagram.png", model.OpOCRImage, false},
		{"letter.docx", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		got, err := OperationForOCR(tt.filename)
		if tt.wantErr {
			if !model.IsKind(err, model.KindInvalidFileType) {
				t.Errorf("%s: ожидалась InvalidFileType, получено %v", tt.filename, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: ожидалось %s, получено %s (%v)", tt.filename, tt.want, got, err)
		}
	}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("<w:document/>"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateContent(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

	tests := []struct {
		name     string
		filename string
		data     []byte
		op       model.Operation
		wantKind model.ErrorKind
	}{
		{"настоящий pdf", "a.pdf", pdf, model.OpPDFToDOCX, ""},
		{"текст под видом pdf", "a.pdf", []byte("just some plain text, definitely not a pdf"), model.OpPDFToDOCX, model.KindMimeMismatch},
		{"png как png", "a.png", pngBytes(t), model.OpJPGToPDF, ""},
		{"png под расширением jpg", "a.jpg", pngBytes(t), model.OpJPGToPDF, ""},
		{"jpeg", "a.jpeg", jpegBytes(t), model.OpOCRImage, ""},
		{"pdf под видом изображения", "a.jpg", pdf, model.OpJPGToPDF, model.KindMimeMismatch},
		{"zip-контейнер docx", "a.docx", zipBytes(t), model.OpDOCXToPDF, ""},
		{"pdf под видом docx", "a.docx", pdf, model.OpDOCXToPDF, model.KindMimeMismatch},
		{"недопустимое расширение", "a.gif", pngBytes(t), model.OpJPGToPDF, model.KindInvalidFileType},
	}

	v := New(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "upload.bin", tt.data)
			err := v.ValidateContent(path, tt.filename, tt.op)
			if tt.wantKind == "" {
				if err != nil {
					t.Errorf("неожиданная ошибка: %v", err)
				}
				return
			}
			if !model.IsKind(err, tt.wantKind) {
				t.Errorf("ожидался вид %s, получено %v", tt.wantKind, err)
			}
		})
	}
}

func TestValidateContent_NotStrict(t *testing.T) {
	v := New(false)
	path := writeFile(t, "upload.bin", []byte("not a pdf"))

	if err := v.ValidateContent(path, "a.pdf", model.OpPDFToDOCX); err != nil {
		t.Errorf("при выключенной проверке ошибки быть не должно: %v", err)
	}
}
