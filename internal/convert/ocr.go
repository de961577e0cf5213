package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// ocrPDF извлекает текст PDF постранично: сначала текстовый слой, и только
// для страниц без него — растеризация страницы и OCR. Если PDF не читается
// как документ, OCR выполняется для всех страниц. Страницы соединяются "\n".
func (d *Dispatcher) ocrPDF(ctx context.Context, input string) (string, error) {
	texts, err := d.engines.PDFReader.PageTexts(input)
	if err != nil {
		d.logger.Warn("Текстовый слой не читается, OCR всех страниц",
			slog.String("input", filepath.Base(input)),
			slog.String("error", err.Error()),
		)
		texts, err = d.ocrAllPages(ctx, input)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.Join(texts, "\n")), nil
	}

	var scratch string
	defer func() {
		if scratch != "" {
			os.RemoveAll(scratch)
		}
	}()

	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			continue
		}
		if scratch == "" {
			if scratch, err = d.areas.Temp.ScratchDir(); err != nil {
				return "", model.NewError(model.KindConversionFailed, err, "нет рабочей директории для OCR")
			}
		}

		page := i + 1
		img := filepath.Join(scratch, fmt.Sprintf("page_%d.png", page))
		texts[i], err = d.ocrPage(ctx, input, page, img)
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}

// ocrPage растеризует и распознаёт одну страницу. Сбой страницы даёт пустой
// текст; ошибкой остаётся только недоступность движка.
func (d *Dispatcher) ocrPage(ctx context.Context, input string, page int, img string) (string, error) {
	err := d.engines.Rasterizer.RasterizePage(ctx, input, page, img)
	if err == nil {
		var text string
		text, err = d.engines.Recognizer.Recognize(ctx, img)
		if err == nil {
			return text, nil
		}
	}
	if model.IsKind(err, model.KindEngineUnavailable) {
		return "", err
	}
	d.logger.Warn("OCR страницы не удался, страница пропущена",
		slog.String("input", filepath.Base(input)),
		slog.Int("page", page),
		slog.String("error", err.Error()),
	)
	return "", nil
}

// ocrAllPages растеризует документ целиком и распознаёт каждую страницу.
func (d *Dispatcher) ocrAllPages(ctx context.Context, input string) ([]string, error) {
	scratch, err := d.areas.Temp.ScratchDir()
	if err != nil {
		return nil, model.NewError(model.KindConversionFailed, err, "нет рабочей директории для OCR")
	}
	defer os.RemoveAll(scratch)

	images, err := d.engines.Rasterizer.RasterizeAll(ctx, input, scratch, "ocr")
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(images))
	for i, img := range images {
		text, err := d.engines.Recognizer.Recognize(ctx, img)
		if err != nil {
			if model.IsKind(err, model.KindEngineUnavailable) {
				return nil, err
			}
			d.logger.Warn("OCR страницы не удался, страница пропущена",
				slog.String("input", filepath.Base(input)),
				slog.Int("page", i+1),
				slog.String("error", err.Error()),
			)
			continue
		}
		texts[i] = text
	}
	return texts, nil
}
