package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// DocumentRenderer конвертирует офисный документ (docx/doc) в PDF.
type DocumentRenderer interface {
	// Name — имя движка для логов и метрик.
	Name() string
	// Render записывает PDF по пути output.
	Render(ctx context.Context, input, output string) error
	// Available проверяет, что движок установлен.
	Available() bool
}

// RendererConfig — пути к инструментам рендеринга.
type RendererConfig struct {
	// OfficeBin — headless офисный пакет (libreoffice / soffice)
	OfficeBin string
	// Docx2PDFBin — нативный конвертер (Windows, Microsoft Word)
	Docx2PDFBin string
}

// NewDocumentRenderer выбирает реализацию по платформе. Выбор выполняется
// один раз при старте.
func NewDocumentRenderer(goos string, cfg RendererConfig, runner Runner, scratch ScratchProvider, logger *slog.Logger) DocumentRenderer {
	if goos == "windows" {
		return &NativeRenderer{bin: cfg.Docx2PDFBin, runner: runner}
	}
	return &OfficeRenderer{
		bin:     cfg.OfficeBin,
		runner:  runner,
		scratch: scratch,
		logger:  logger.With(slog.String("component", "office_renderer")),
	}
}

// NativeRenderer — рендеринг через docx2pdf (пишет сразу в целевой путь).
type NativeRenderer struct {
	bin    string
	runner Runner
}

func (r *NativeRenderer) Name() string    { return r.bin }
func (r *NativeRenderer) Available() bool { return r.runner.Available(r.bin) }

// Render запускает `docx2pdf input output`.
func (r *NativeRenderer) Render(ctx context.Context, input, output string) error {
	if _, err := r.runner.Run(ctx, r.bin, input, output); err != nil {
		return err
	}
	return checkOutput(output, r.bin)
}

// OfficeRenderer — рендеринг через headless LibreOffice. Инструмент пишет
// результат с фиксированным именем {base}.pdf в --outdir, поэтому каждый вызов
// получает свою рабочую директорию, а результат переносится в output.
type OfficeRenderer struct {
	bin     string
	runner  Runner
	scratch ScratchProvider
	logger  *slog.Logger
}

func (r *OfficeRenderer) Name() string    { return r.bin }
func (r *OfficeRenderer) Available() bool { return r.runner.Available(r.bin) }

// Render запускает `soffice --headless --convert-to pdf --outdir <dir> input`.
func (r *OfficeRenderer) Render(ctx context.Context, input, output string) error {
	dir, err := r.scratch.ScratchDir()
	if err != nil {
		return model.NewError(model.KindConversionFailed, err, "нет рабочей директории для %s", r.bin)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("Ошибка удаления рабочей директории",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Отдельный профиль: параллельные экземпляры не блокируют друг друга
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(dir, "profile"))
	args := []string{profile, "--headless", "--convert-to", "pdf", "--outdir", dir, input}
	if _, err := r.runner.Run(ctx, r.bin, args...); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(dir, base+".pdf")
	if err := checkOutput(produced, r.bin); err != nil {
		return err
	}
	if err := moveFile(produced, output); err != nil {
		return model.NewError(model.KindConversionFailed, err, "не удалось перенести результат %s", r.bin)
	}
	return nil
}
