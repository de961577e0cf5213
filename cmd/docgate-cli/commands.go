package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/docgate/internal/convert"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/engine"
	"github.com/bigkaa/docgate/internal/intake"
	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/packager"
	"github.com/bigkaa/docgate/internal/service"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// runtimeDeps — компоненты, общие для команд конвертации.
type runtimeDeps struct {
	areas      *filestore.Areas
	journal    jobs.Repository
	dispatcher *convert.Dispatcher
	svc        *service.ConversionService
}

func openDeps(ctx context.Context, c *cli.Context) (*runtimeDeps, error) {
	cfg, logger := appConfig(c), appLogger(c)

	areas, err := filestore.OpenAreas(cfg.UploadDir, cfg.ConvertedDir, cfg.TempDir)
	if err != nil {
		return nil, err
	}
	journal, err := jobs.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := convert.NewDispatcher(convert.NewEngines(engineConfig(cfg), areas.Temp, logger), areas, logger)
	svc := service.NewConversionService(areas, intake.New(cfg.StrictMIME), dispatcher,
		packager.New(areas.Converted), journal,
		service.ConversionOptions{DeleteInputs: cfg.DeleteInputs}, logger)

	return &runtimeDeps{areas: areas, journal: journal, dispatcher: dispatcher, svc: svc}, nil
}

// convertFiles открывает локальные файлы и передаёт их сервису.
func (d *runtimeDeps) convertFiles(ctx context.Context, op model.Operation, paths []string) (*service.Result, error) {
	uploads := make([]service.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия %s: %w", p, err)
		}
		defer f.Close()
		uploads = append(uploads, service.Upload{Filename: filepath.Base(p), Reader: f})
	}
	return d.svc.ConvertFiles(ctx, op, uploads, currentUser())
}

func convertCommand() *cli.Command {
	slugs := make([]string, 0, 4)
	for _, op := range model.AllOperations() {
		if spec, _ := op.Spec(); spec.Slug != "" {
			slugs = append(slugs, spec.Slug)
		}
	}

	return &cli.Command{
		Name:      "convert",
		Usage:     "Конвертировать файлы (" + strings.Join(slugs, ", ") + ")",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "op",
				Usage:    "Операция: " + strings.Join(slugs, " | "),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   ".",
				Usage:   "Файл или директория для результата",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("не указаны входные файлы")
			}
			op, err := model.OperationFromSlug(c.String("op"))
			if err != nil {
				return err
			}

			deps, err := openDeps(c.Context, c)
			if err != nil {
				return err
			}
			defer deps.journal.Close()

			result, err := deps.convertFiles(c.Context, op, c.Args().Slice())
			if err != nil {
				return err
			}

			dst := outputPath(c.String("output"), result.DownloadName)
			if err := copyFile(result.Path, dst); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, dst)
			return nil
		},
	}
}

func ocrCommand() *cli.Command {
	return &cli.Command{
		Name:      "ocr",
		Usage:     "Распознать текст изображения или PDF",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("ожидается ровно один файл")
			}
			path := c.Args().First()
			op, err := intake.OperationForOCR(path)
			if err != nil {
				return err
			}

			deps, err := openDeps(c.Context, c)
			if err != nil {
				return err
			}
			defer deps.journal.Close()

			result, err := deps.convertFiles(c.Context, op, []string{path})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, result.Text)
			return nil
		},
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Нормализовать текст (FILE или stdin); --docx сохраняет результат в DOCX",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "docx",
				Usage: "Записать текст в DOCX по указанному пути вместо вывода",
			},
		},
		Action: func(c *cli.Context) error {
			var in io.Reader = os.Stdin
			if c.NArg() > 0 && c.Args().First() != "-" {
				f, err := os.Open(c.Args().First())
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("ошибка чтения текста: %w", err)
			}

			if out := c.String("docx"); out != "" {
				return engine.WriteDOCX(string(data), out)
			}
			fmt.Fprintln(c.App.Writer, convert.FormatText(string(data)))
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Однократная очистка областей хранения и журнала",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "retention",
				Usage: "Срок хранения файлов (по умолчанию DG_RETENTION)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger := appConfig(c), appLogger(c)
			retention := cfg.Retention
			if c.IsSet("retention") {
				retention = c.Duration("retention")
			}

			areas, err := filestore.OpenAreas(cfg.UploadDir, cfg.ConvertedDir, cfg.TempDir)
			if err != nil {
				return err
			}
			journal, err := jobs.Open(c.Context, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			sweeper := service.NewSweeper(areas.All(), journal, service.SweeperConfig{
				Retention:        retention,
				JournalRetention: cfg.JournalRetention,
				Interval:         cfg.SweepInterval,
			}, logger)
			res := sweeper.RunOnce(c.Context)

			fmt.Fprintf(c.App.Writer, "удалено: %d, ошибок: %d, записей журнала: %d, время: %s\n",
				res.Deleted, res.Errors, res.JobsPruned, res.Duration)
			return nil
		},
	}
}

func enginesCommand() *cli.Command {
	return &cli.Command{
		Name:  "engines",
		Usage: "Проверить доступность внешних движков",
		Action: func(c *cli.Context) error {
			cfg := appConfig(c)
			engines := convert.NewEngines(engineConfig(cfg), nil, appLogger(c))
			status := convert.NewDispatcher(engines, nil, appLogger(c)).EngineStatus()

			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)

			missing := 0
			for _, name := range names {
				mark := "ok"
				if !status[name] {
					mark = "не найден"
					missing++
				}
				fmt.Fprintf(c.App.Writer, "%-14s %s\n", name, mark)
			}
			if missing > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// outputPath — итоговый путь: директория дополняется именем результата.
func outputPath(output, downloadName string) string {
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, downloadName)
	}
	return output
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ошибка открытия результата: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("ошибка создания %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("ошибка записи %s: %w", dst, err)
	}
	return out.Close()
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}
