package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Open выбирает реализацию журнала по DSN:
//
//	""                          — in-memory
//	postgres://…, postgresql://… — PostgreSQL (pgx)
//	sqlite://path, sqlite::memory: — SQLite (modernc)
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Repository, error) {
	switch {
	case dsn == "":
		logger.Info("Журнал заданий в памяти")
		return NewMemoryRepository(), nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		repo, err := OpenSQL(ctx, DialectPostgres, dsn)
		if err != nil {
			return nil, err
		}
		logger.Info("Журнал заданий в PostgreSQL")
		return repo, nil

	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//")
		if path == "" {
			return nil, fmt.Errorf("DSN %q: не указан путь к файлу SQLite", dsn)
		}
		repo, err := OpenSQL(ctx, DialectSQLite, path)
		if err != nil {
			return nil, err
		}
		logger.Info("Журнал заданий в SQLite", slog.String("path", path))
		return repo, nil

	default:
		return nil, fmt.Errorf("DSN журнала: неподдерживаемая схема в %q (ожидается postgres:// или sqlite://)", dsn)
	}
}
