// docgate-cli — локальные конвертации без HTTP: те же движки, области
// хранения и журнал, что и у сервера. Конфигурация — переменные DG_*.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/docgate/internal/config"
	"github.com/bigkaa/docgate/internal/convert"
	"github.com/bigkaa/docgate/internal/domain/model"
)

func main() {
	app := &cli.App{
		Name:    "docgate-cli",
		Usage:   "Конвертация документов, OCR и обслуживание областей хранения docgate",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Подробный лог в stderr",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("ошибка конфигурации: %w", err)
			}
			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			c.App.Metadata = map[string]any{
				"config": cfg,
				"logger": slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
			}
			return nil
		},
		Commands: []*cli.Command{
			convertCommand(),
			ocrCommand(),
			formatCommand(),
			sweepCommand(),
			enginesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode различает ошибки ввода (2) и ошибки движков (1).
func exitCode(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidFileType, model.KindMimeMismatch:
		return 2
	default:
		return 1
	}
}

func appConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func appLogger(c *cli.Context) *slog.Logger {
	return c.App.Metadata["logger"].(*slog.Logger)
}

// engineConfig переносит параметры движков из конфигурации.
func engineConfig(cfg *config.Config) convert.EngineConfig {
	return convert.EngineConfig{
		GOOS:         runtime.GOOS,
		OfficeBin:    cfg.OfficeBin,
		Docx2PDFBin:  cfg.Docx2PDFBin,
		PDF2DocxBin:  cfg.PDF2DocxBin,
		PdftoppmBin:  cfg.PdftoppmBin,
		TesseractBin: cfg.TesseractBin,
		OCRLanguages: cfg.OCRLanguages,
		RasterDPI:    cfg.RasterDPI,
		JPEGQuality:  cfg.JPEGQuality,
		Timeout:      cfg.EngineTimeout,
	}
}
