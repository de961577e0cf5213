package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// Rasterizer превращает страницы PDF в изображения.
type Rasterizer interface {
	// RasterizeAll записывает по одному JPEG на страницу в dstDir и возвращает
	// пути в порядке страниц. Имена: {baseName}_page_{N}_{id}.jpg
	RasterizeAll(ctx context.Context, input, dstDir, baseName string) ([]string, error)
	// RasterizePage записывает одну страницу (нумерация с 1) в PNG по пути output.
	RasterizePage(ctx context.Context, input string, page int, output string) error
}

// PdftoppmRasterizer — Rasterizer на основе poppler pdftoppm.
type PdftoppmRasterizer struct {
	bin     string
	dpi     int
	quality int
	runner  Runner
	scratch ScratchProvider
	logger  *slog.Logger
}

// NewPdftoppmRasterizer создаёт растеризатор с заданными DPI и качеством JPEG.
func NewPdftoppmRasterizer(bin string, dpi, quality int, runner Runner, scratch ScratchProvider, logger *slog.Logger) *PdftoppmRasterizer {
	return &PdftoppmRasterizer{
		bin:     bin,
		dpi:     dpi,
		quality: quality,
		runner:  runner,
		scratch: scratch,
		logger:  logger.With(slog.String("component", "rasterizer")),
	}
}

func (r *PdftoppmRasterizer) Name() string    { return r.bin }
func (r *PdftoppmRasterizer) Available() bool { return r.runner.Available(r.bin) }

// RasterizeAll растеризует все страницы в рабочую директорию и переносит
// результаты в dstDir под уникальными именами.
func (r *PdftoppmRasterizer) RasterizeAll(ctx context.Context, input, dstDir, baseName string) ([]string, error) {
	dir, err := r.scratch.ScratchDir()
	if err != nil {
		return nil, model.NewError(model.KindConversionFailed, err, "нет рабочей директории для %s", r.bin)
	}
	defer r.cleanup(dir)

	prefix := filepath.Join(dir, "page")
	args := []string{
		"-jpeg", "-jpegopt", "quality=" + strconv.Itoa(r.quality),
		"-r", strconv.Itoa(r.dpi),
		input, prefix,
	}
	if _, err := r.runner.Run(ctx, r.bin, args...); err != nil {
		return nil, err
	}

	pages, err := collectPages(dir, "page-", ".jpg")
	if err != nil {
		return nil, model.NewError(model.KindConversionFailed, err, "ошибка чтения результатов %s", r.bin)
	}
	if len(pages) == 0 {
		return nil, model.NewError(model.KindConversionFailed, nil, "%s не создал ни одной страницы", r.bin)
	}

	outputs := make([]string, 0, len(pages))
	for i, src := range pages {
		if err := checkOutput(src, r.bin); err != nil {
			removeAll(outputs)
			return nil, err
		}
		dst := filepath.Join(dstDir, fmt.Sprintf("%s_page_%d_%s.jpg", baseName, i+1, uuid.NewString()[:8]))
		if err := moveFile(src, dst); err != nil {
			removeAll(outputs)
			return nil, model.NewError(model.KindConversionFailed, err, "не удалось перенести страницу %d", i+1)
		}
		outputs = append(outputs, dst)
	}
	return outputs, nil
}

// RasterizePage растеризует одну страницу в PNG.
func (r *PdftoppmRasterizer) RasterizePage(ctx context.Context, input string, page int, output string) error {
	prefix := strings.TrimSuffix(output, filepath.Ext(output))
	args := []string{
		"-png", "-r", strconv.Itoa(r.dpi),
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		"-singlefile",
		input, prefix,
	}
	if _, err := r.runner.Run(ctx, r.bin, args...); err != nil {
		return err
	}
	produced := prefix + ".png"
	if err := checkOutput(produced, r.bin); err != nil {
		return err
	}
	if produced != output {
		if err := moveFile(produced, output); err != nil {
			return model.NewError(model.KindConversionFailed, err, "не удалось перенести страницу %d", page)
		}
	}
	return nil
}

func (r *PdftoppmRasterizer) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		r.logger.Warn("Ошибка удаления рабочей директории",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}

// collectPages находит файлы {prefix}{N}{ext} и сортирует их по номеру страницы.
// pdftoppm дополняет номер нулями в зависимости от числа страниц.
func collectPages(dir, prefix, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}

// removeAll удаляет уже перенесённые результаты при частичном сбое.
func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
