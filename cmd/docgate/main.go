// Точка входа docgate — шлюза конвертации документов.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/bigkaa/docgate/internal/api/handlers"
	"github.com/bigkaa/docgate/internal/api/middleware"
	"github.com/bigkaa/docgate/internal/config"
	"github.com/bigkaa/docgate/internal/convert"
	"github.com/bigkaa/docgate/internal/intake"
	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/packager"
	"github.com/bigkaa/docgate/internal/server"
	"github.com/bigkaa/docgate/internal/service"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("docgate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("os", runtime.GOOS),
		slog.Bool("auth", cfg.AuthEnabled()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("docgate остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Области хранения
	areas, err := filestore.OpenAreas(cfg.UploadDir, cfg.ConvertedDir, cfg.TempDir)
	if err != nil {
		return fmt.Errorf("инициализация областей хранения: %w", err)
	}

	// 2. Журнал заданий
	journal, err := jobs.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("инициализация журнала заданий: %w", err)
	}
	defer journal.Close()

	// 3. Движки и диспетчер; рендерер выбирается по платформе один раз
	engines := convert.NewEngines(engineConfig(cfg), areas.Temp, logger)
	dispatcher := convert.NewDispatcher(engines, areas, logger)
	for name, ok := range dispatcher.EngineStatus() {
		if !ok {
			logger.Warn("Движок не найден, зависящие операции недоступны", slog.String("engine", name))
		}
	}

	// 4. Сервисы
	conversionSvc := service.NewConversionService(
		areas,
		intake.New(cfg.StrictMIME),
		dispatcher,
		packager.New(areas.Converted),
		journal,
		service.ConversionOptions{DeleteInputs: cfg.DeleteInputs},
		logger,
	)
	deliverySvc := service.NewDeliveryService(areas.Converted, logger)

	// 5. Фоновая очистка
	sweeper := service.NewSweeper(areas.All(), journal, service.SweeperConfig{
		Retention:        cfg.Retention,
		JournalRetention: cfg.JournalRetention,
		Interval:         cfg.SweepInterval,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 6. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			TLSSkipVerify:   cfg.TLSSkipVerify,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			return fmt.Errorf("инициализация JWT: %w", err)
		}
		defer jwtAuth.Close()
	} else {
		logger.Warn("DG_JWKS_URL не задан, аутентификация отключена")
	}

	// 7. Мониторинг внешних зависимостей (JWKS, PostgreSQL журнала)
	healthHandler := handlers.NewHealthHandler(areas, journal, dispatcher)
	depCfg := service.DephealthConfig{
		ServiceID:     "docgate",
		Group:         "docgate",
		JWKSURL:       cfg.JWKSUrl,
		TLSSkipVerify: cfg.TLSSkipVerify,
		CheckInterval: cfg.DephealthCheckInterval,
	}
	if repo, ok := journal.(*jobs.SQLRepository); ok && repo.Dialect() == jobs.DialectPostgres {
		depCfg.DB = repo.DB()
		depCfg.DatabaseURL = cfg.DatabaseURL
	}
	depSvc, err := service.NewDephealthService(depCfg, logger)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Debug("Внешних зависимостей нет, мониторинг не запускается")
	case err != nil:
		return fmt.Errorf("инициализация dephealth: %w", err)
	default:
		if err := depSvc.Start(ctx); err != nil {
			return fmt.Errorf("запуск dephealth: %w", err)
		}
		defer depSvc.Stop()
		healthHandler.WithDependencies(depSvc)
	}

	// 8. HTTP-сервер
	srv := server.New(cfg, logger, server.Handlers{
		Convert: handlers.NewConvertHandler(conversionSvc, deliverySvc, cfg.MaxUploadSize, logger),
		Jobs:    handlers.NewJobsHandler(journal, logger),
		System:  handlers.NewSystemHandler(cfg, areas, dispatcher),
		Health:  healthHandler,
	}, jwtAuth)

	return srv.Run(ctx)
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
