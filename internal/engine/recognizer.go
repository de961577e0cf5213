package engine

import (
	"context"
	"strings"
)

// Recognizer распознаёт текст на изображении.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractRecognizer — OCR через `tesseract img stdout -l LANGS`.
type TesseractRecognizer struct {
	bin       string
	languages string
	runner    Runner
}

// NewTesseractRecognizer создаёт распознаватель с набором языков (например, "eng+hin").
func NewTesseractRecognizer(bin, languages string, runner Runner) *TesseractRecognizer {
	return &TesseractRecognizer{bin: bin, languages: languages, runner: runner}
}

func (r *TesseractRecognizer) Name() string    { return r.bin }
func (r *TesseractRecognizer) Available() bool { return r.runner.Available(r.bin) }

// Recognize возвращает распознанный текст без начальных и конечных пробелов.
func (r *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	out, err := r.runner.Run(ctx, r.bin, imagePath, "stdout", "-l", r.languages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
