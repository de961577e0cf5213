package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestOperationFromSlug(t *testing.T) {
	tests := []struct {
		slug string
		want Operation
	}{
		{"pdf-to-docx", OpPDFToDOCX},
		{"docx-to-pdf", OpDOCXToPDF},
		{"pdf-to-jpg", OpPDFToJPG},
		{"jpg-to-pdf", OpJPGToPDF},
	}
	for _, tt := range tests {
		got, err := OperationFromSlug(tt.slug)
		if err != nil {
			t.Fatalf("OperationFromSlug(%q): неожиданная ошибка: %v", tt.slug, err)
		}
		if got != tt.want {
			t.Errorf("OperationFromSlug(%q): ожидалось %s, получено %s", tt.slug, tt.want, got)
		}
	}

	if _, err := OperationFromSlug("ocr"); err == nil {
		t.Error("ожидалась ошибка для операции без slug")
	}
}

func TestOperation_Accepts(t *testing.T) {
	if !OpJPGToPDF.Accepts("JPEG") {
		t.Error("jpg_to_pdf должна принимать JPEG без учёта регистра")
	}
	if OpJPGToPDF.Accepts("gif") {
		t.Error("jpg_to_pdf не должна принимать gif")
	}
	if OpTextFormat.AcceptsFiles() {
		t.Error("text_format не принимает файлы")
	}
	for _, op := range AllOperations() {
		if !op.Valid() {
			t.Errorf("операция %s должна быть валидной", op)
		}
	}
}

func TestWithContext(t *testing.T) {
	base := NewError(KindEngineUnavailable, nil, "нет tesseract")
	wrapped := fmt.Errorf("обёртка: %w", base)

	got := WithContext(wrapped, OpOCRImage, "scan.png")
	if got.Kind != KindEngineUnavailable {
		t.Errorf("Kind: ожидалось %s, получено %s", KindEngineUnavailable, got.Kind)
	}
	if got.Op != OpOCRImage || got.Input != "scan.png" {
		t.Errorf("контекст не заполнен: %+v", got)
	}

	plain := WithContext(errors.New("boom"), OpPDFToDOCX, "a.pdf")
	if plain.Kind != KindConversionFailed {
		t.Errorf("ошибка вне таксономии должна стать ConversionFailed, получено %s", plain.Kind)
	}
	if !IsKind(plain, KindConversionFailed) {
		t.Error("IsKind должен распознать ConversionFailed")
	}
}
