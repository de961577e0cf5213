// Пакет intake — проверка загружаемых файлов до вызова движков:
// допустимость расширения для операции и соответствие сигнатуры содержимого.
package intake

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// mimeFamilies — допустимые MIME-типы содержимого по расширению.
// Проверяется сам тип и его родители в иерархии mimetype.
var mimeFamilies = map[string][]string{
	"pdf":  {"application/pdf"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	"doc":  {"application/msword", "application/x-ole-storage"},
	"jpg":  rasterImages,
	"jpeg": rasterImages,
	"png":  rasterImages,
	"bmp":  rasterImages,
	"tiff": rasterImages,
}

// Изображения взаимозаменяемы: компоновщик и OCR декодируют по содержимому.
var rasterImages = []string{"image/jpeg", "image/png", "image/bmp", "image/x-ms-bmp", "image/tiff"}

// Validator — проверка входных файлов.
type Validator struct {
	// strictMIME — включает проверку сигнатуры содержимого
	strictMIME bool
}

// New создаёт Validator.
func New(strictMIME bool) *Validator {
	return &Validator{strictMIME: strictMIME}
}

// Extension возвращает расширение (после последней точки) в нижнем регистре.
// Пустая строка, если точки нет или она последняя.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// ValidateName проверяет, что расширение файла допускается операцией.
func (v *Validator) ValidateName(filename string, op model.Operation) error {
	if !op.AcceptsFiles() {
		return model.NewError(model.KindInvalidFileType, nil, "операция %s не принимает файлы", op)
	}
	ext := Extension(filename)
	if ext == "" {
		return model.NewError(model.KindInvalidFileType, nil, "файл %q без расширения", filename)
	}
	if !op.Accepts(ext) {
		spec, _ := op.Spec()
		return model.NewError(model.KindInvalidFileType, nil,
			"расширение %q не допускается для %s (допустимые: %s)", ext, op, strings.Join(spec.Extensions, ", "))
	}
	return nil
}

// ValidateContent сверяет сигнатуру содержимого файла path с расширением filename.
// При выключенной строгой проверке всегда возвращает nil.
func (v *Validator) ValidateContent(path, filename string, op model.Operation) error {
	if !v.strictMIME {
		return nil
	}
	if err := v.ValidateName(filename, op); err != nil {
		return err
	}

	ext := Extension(filename)
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return model.NewError(model.KindMimeMismatch, err, "не удалось определить тип содержимого %q", filename)
	}

	for m := detected; m != nil; m = m.Parent() {
		for _, allowed := range mimeFamilies[ext] {
			if m.Is(allowed) {
				return nil
			}
		}
	}
	return model.NewError(model.KindMimeMismatch, nil,
		"содержимое %q имеет тип %s, не соответствующий расширению .%s", filename, detected.String(), ext)
}

// OperationForOCR выбирает ocr_image или ocr_pdf по расширению файла.
func OperationForOCR(filename string) (model.Operation, error) {
	ext := Extension(filename)
	switch {
	case ext == "":
		return "", model.NewError(model.KindInvalidFileType, nil, "файл %q без расширения", filename)
	case model.OpOCRPDF.Accepts(ext):
		return model.OpOCRPDF, nil
	case model.OpOCRImage.Accepts(ext):
		return model.OpOCRImage, nil
	default:
		return "", model.NewError(model.KindInvalidFileType, nil, "расширение %q не поддерживается для OCR", ext)
	}
}
