package convert

import (
	"log/slog"
	"time"

	"github.com/bigkaa/docgate/internal/engine"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// EngineConfig — параметры внешних движков.
type EngineConfig struct {
	// GOOS определяет реализацию рендерера DOCX → PDF
	GOOS string

	OfficeBin    string
	Docx2PDFBin  string
	PDF2DocxBin  string
	PdftoppmBin  string
	TesseractBin string

	OCRLanguages string
	RasterDPI    int
	JPEGQuality  int
	// Timeout — предельное время одного вызова движка (0 — без ограничения)
	Timeout time.Duration
}

// NewEngines собирает набор движков поверх одного ExecRunner.
// Рабочие директории движков создаются в области temp.
func NewEngines(cfg EngineConfig, temp *filestore.FileStore, logger *slog.Logger) Engines {
	runner := engine.NewExecRunner(cfg.Timeout, logger)
	return Engines{
		Renderer: engine.NewDocumentRenderer(cfg.GOOS, engine.RendererConfig{
			OfficeBin:   cfg.OfficeBin,
			Docx2PDFBin: cfg.Docx2PDFBin,
		}, runner, temp, logger),
		Reconstructor: engine.NewReconstructor(cfg.PDF2DocxBin, runner),
		Rasterizer:    engine.NewPdftoppmRasterizer(cfg.PdftoppmBin, cfg.RasterDPI, cfg.JPEGQuality, runner, temp, logger),
		Compositor:    engine.NewCompositor(cfg.JPEGQuality),
		Recognizer:    engine.NewTesseractRecognizer(cfg.TesseractBin, cfg.OCRLanguages, runner),
		PDFReader:     engine.NewTextLayerReader(),
	}
}
