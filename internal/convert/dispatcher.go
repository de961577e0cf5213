// Пакет convert — диспетчер конвертации: сопоставляет операцию ровно одному
// движку, проверяет результат и переводит сбои в таксономию ошибок.
package convert

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/engine"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// Reconstructor — движок PDF → DOCX.
type Reconstructor interface {
	Reconstruct(ctx context.Context, input, output string) error
}

// Compositor — сборка PDF из изображений.
type Compositor interface {
	Compose(images []string, output string) error
}

// Engines — набор движков диспетчера.
type Engines struct {
	Renderer      engine.DocumentRenderer
	Reconstructor Reconstructor
	Rasterizer    engine.Rasterizer
	Compositor    Compositor
	Recognizer    engine.Recognizer
	PDFReader     engine.PDFReader
}

// Artifact — результат конвертации: пути файлов в области converted
// и/или распознанный текст.
type Artifact struct {
	Operation model.Operation
	Paths     []string
	Text      string
}

// Dispatcher — диспетчер конвертации.
type Dispatcher struct {
	engines Engines
	areas   *filestore.Areas
	logger  *slog.Logger
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(engines Engines, areas *filestore.Areas, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		engines: engines,
		areas:   areas,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Convert выполняет файловую операцию над inputs (полные пути в области uploads).
// jpg_to_pdf принимает N входов, остальные операции — ровно один.
func (d *Dispatcher) Convert(ctx context.Context, op model.Operation, inputs []string) (*Artifact, error) {
	if len(inputs) == 0 {
		return nil, model.NewError(model.KindInvalidFileType, nil, "нет входных файлов для %s", op)
	}
	if op != model.OpJPGToPDF && len(inputs) != 1 {
		return nil, model.NewError(model.KindInvalidFileType, nil, "%s принимает ровно один файл", op)
	}

	input := inputs[0]
	art := &Artifact{Operation: op}
	var err error

	switch op {
	case model.OpPDFToDOCX:
		out := d.areas.Converted.Reserve(filestore.OriginalStem(filepath.Base(input)), "docx")
		err = d.engines.Reconstructor.Reconstruct(ctx, input, out)
		art.Paths = []string{out}

	case model.OpDOCXToPDF:
		out := d.areas.Converted.Reserve(filestore.OriginalStem(filepath.Base(input)), "pdf")
		err = d.engines.Renderer.Render(ctx, input, out)
		art.Paths = []string{out}

	case model.OpPDFToJPG:
		art.Paths, err = d.engines.Rasterizer.RasterizeAll(ctx, input, d.areas.Converted.Dir(), filestore.OriginalStem(filepath.Base(input)))

	case model.OpJPGToPDF:
		out := d.areas.Converted.Reserve("merged_images", "pdf")
		err = d.engines.Compositor.Compose(inputs, out)
		art.Paths = []string{out}

	case model.OpOCRImage:
		art.Text, err = d.engines.Recognizer.Recognize(ctx, input)

	case model.OpOCRPDF:
		art.Text, err = d.ocrPDF(ctx, input)

	default:
		return nil, model.NewError(model.KindInvalidFileType, nil, "операция %s не принимает файлы", op)
	}

	if err != nil {
		d.discard(art.Paths)
		e := model.WithContext(err, op, filepath.Base(input))
		d.logger.Error("Ошибка конвертации",
			slog.String("operation", string(op)),
			slog.String("input", e.Input),
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
		return nil, e
	}

	d.logger.Debug("Конвертация выполнена",
		slog.String("operation", string(op)),
		slog.String("input", filepath.Base(input)),
		slog.Int("outputs", len(art.Paths)),
	)
	return art, nil
}

// ConvertText выполняет текстовую операцию (text_format, text_to_docx).
func (d *Dispatcher) ConvertText(ctx context.Context, op model.Operation, text string) (*Artifact, error) {
	art := &Artifact{Operation: op}

	switch op {
	case model.OpTextFormat:
		art.Text = FormatText(text)
		return art, nil

	case model.OpTextToDOCX:
		out := d.areas.Converted.Reserve("extracted_text", "docx")
		if err := engine.WriteDOCX(text, out); err != nil {
			d.discard([]string{out})
			d.logger.Error("Ошибка создания DOCX",
				slog.String("operation", string(op)),
				slog.String("error", err.Error()),
			)
			return nil, model.WithContext(model.NewError(model.KindConversionFailed, err, "ошибка создания DOCX"), op, "")
		}
		art.Paths = []string{out}
		return art, nil

	default:
		return nil, model.NewError(model.KindInvalidFileType, nil, "операция %s не является текстовой", op)
	}
}

// EngineStatus возвращает доступность внешних движков по имени.
func (d *Dispatcher) EngineStatus() map[string]bool {
	status := make(map[string]bool)
	for _, e := range []any{
		d.engines.Renderer, d.engines.Reconstructor, d.engines.Rasterizer, d.engines.Recognizer,
	} {
		if a, ok := e.(interface {
			Name() string
			Available() bool
		}); ok {
			status[a.Name()] = a.Available()
		}
	}
	return status
}

// discard удаляет частичные результаты неудачной операции.
func (d *Dispatcher) discard(paths []string) {
	for _, p := range paths {
		if err := d.areas.Converted.DeleteFile(filepath.Base(p)); err != nil {
			d.logger.Warn("Не удалось удалить частичный результат",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}
