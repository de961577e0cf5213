// Пакет model — доменные модели docgate: операции конвертации,
// таксономия ошибок и записи журнала заданий.
package model

import (
	"fmt"
	"strings"
)

// Operation — идентификатор операции конвертации.
type Operation string

const (
	OpPDFToDOCX  Operation = "pdf_to_docx"
	OpDOCXToPDF  Operation = "docx_to_pdf"
	OpPDFToJPG   Operation = "pdf_to_jpg"
	OpJPGToPDF   Operation = "jpg_to_pdf"
	OpOCRImage   Operation = "ocr_image"
	OpOCRPDF     Operation = "ocr_pdf"
	OpTextFormat Operation = "text_format"
	OpTextToDOCX Operation = "text_to_docx"
)

// Cardinality — количество файлов, которое производит операция.
type Cardinality int

const (
	// CardinalitySingle — ровно один результат (файл или текст)
	CardinalitySingle Cardinality = iota
	// CardinalityMany — N файлов, при N > 1 упаковываются в архив
	CardinalityMany
)

// OutputKind — вид результата операции.
type OutputKind string

const (
	OutputFile OutputKind = "file"
	OutputText OutputKind = "text"
)

// Наборы допустимых расширений (без точки, в нижнем регистре).
var (
	pdfExtensions   = []string{"pdf"}
	docxExtensions  = []string{"docx", "doc"}
	imageExtensions = []string{"jpg", "jpeg", "png", "bmp", "tiff"}
)

// OperationSpec — описание операции: входные расширения, кардинальность, вид результата.
type OperationSpec struct {
	Operation   Operation
	Extensions  []string
	Cardinality Cardinality
	Output      OutputKind
	// Slug — сегмент URL для /convert/{slug} (пусто, если операция не доступна через /convert)
	Slug string
}

var specs = map[Operation]OperationSpec{
	OpPDFToDOCX:  {Operation: OpPDFToDOCX, Extensions: pdfExtensions, Cardinality: CardinalitySingle, Output: OutputFile, Slug: "pdf-to-docx"},
	OpDOCXToPDF:  {Operation: OpDOCXToPDF, Extensions: docxExtensions, Cardinality: CardinalitySingle, Output: OutputFile, Slug: "docx-to-pdf"},
	OpPDFToJPG:   {Operation: OpPDFToJPG, Extensions: pdfExtensions, Cardinality: CardinalityMany, Output: OutputFile, Slug: "pdf-to-jpg"},
	OpJPGToPDF:   {Operation: OpJPGToPDF, Extensions: imageExtensions, Cardinality: CardinalitySingle, Output: OutputFile, Slug: "jpg-to-pdf"},
	OpOCRImage:   {Operation: OpOCRImage, Extensions: imageExtensions, Cardinality: CardinalitySingle, Output: OutputText},
	OpOCRPDF:     {Operation: OpOCRPDF, Extensions: pdfExtensions, Cardinality: CardinalitySingle, Output: OutputText},
	OpTextFormat: {Operation: OpTextFormat, Cardinality: CardinalitySingle, Output: OutputText},
	OpTextToDOCX: {Operation: OpTextToDOCX, Cardinality: CardinalitySingle, Output: OutputFile},
}

// AllOperations возвращает все операции в фиксированном порядке.
func AllOperations() []Operation {
	return []Operation{
		OpPDFToDOCX, OpDOCXToPDF, OpPDFToJPG, OpJPGToPDF,
		OpOCRImage, OpOCRPDF, OpTextFormat, OpTextToDOCX,
	}
}

// Spec возвращает описание операции.
func (o Operation) Spec() (OperationSpec, bool) {
	s, ok := specs[o]
	return s, ok
}

// Valid проверяет, что операция входит в перечисление.
func (o Operation) Valid() bool {
	_, ok := specs[o]
	return ok
}

// AcceptsFiles возвращает true, если операция принимает загруженные файлы.
func (o Operation) AcceptsFiles() bool {
	return len(specs[o].Extensions) > 0
}

// Accepts проверяет расширение (без точки, регистр не важен).
func (o Operation) Accepts(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range specs[o].Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// OperationFromSlug возвращает операцию по сегменту URL /convert/{slug}.
func OperationFromSlug(slug string) (Operation, error) {
	for _, s := range specs {
		if s.Slug != "" && s.Slug == slug {
			return s.Operation, nil
		}
	}
	return "", fmt.Errorf("неизвестная операция конвертации %q", slug)
}

func (o Operation) String() string {
	return string(o)
}
