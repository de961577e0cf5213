package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/docgate/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// repositories возвращает все реализации журнала для общих тестов.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()

	sqliteRepo, err := OpenSQL(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func newJob(id string, createdAt time.Time) *model.Job {
	return &model.Job{
		ID:            id,
		Operation:     model.OpPDFToDOCX,
		InputName:     "report.pdf",
		InputChecksum: "abc123",
		OutputName:    "report_1.docx",
		OutputCount:   1,
		Status:        model.JobSucceeded,
		Subject:       "user-1",
		CreatedAt:     createdAt.UTC().Truncate(time.Millisecond),
		DurationMs:    42,
	}
}

func TestRepository_RecordAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newJob("job-1", time.Now())

			require.NoError(t, repo.Record(ctx, job))

			got, err := repo.Get(ctx, "job-1")
			require.NoError(t, err)
			require.True(t, job.CreatedAt.Equal(got.CreatedAt))
			got.CreatedAt = job.CreatedAt
			require.Equal(t, job, got)

			// upsert
			job.Status = model.JobFailed
			job.ErrorKind = model.KindConversionFailed
			job.ErrorMessage = "пустой результат"
			require.NoError(t, repo.Record(ctx, job))

			got, err = repo.Get(ctx, "job-1")
			require.NoError(t, err)
			require.Equal(t, model.JobFailed, got.Status)
			require.Equal(t, model.KindConversionFailed, got.ErrorKind)

			_, err = repo.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRepository_ListNewestFirst(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				require.NoError(t, repo.Record(ctx, newJob(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute))))
			}

			all, total, err := repo.List(ctx, 0, 0)
			require.NoError(t, err)
			require.Equal(t, 5, total)
			require.Len(t, all, 5)
			require.Equal(t, "job-4", all[0].ID)
			require.Equal(t, "job-0", all[4].ID)

			page, total, err := repo.List(ctx, 2, 1)
			require.NoError(t, err)
			require.Equal(t, 5, total)
			require.Len(t, page, 2)
			require.Equal(t, "job-3", page[0].ID)
			require.Equal(t, "job-2", page[1].ID)

			empty, total, err := repo.List(ctx, 10, 5)
			require.NoError(t, err)
			require.Equal(t, 5, total)
			require.Empty(t, empty)
		})
	}
}

func TestRepository_PruneBefore(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			require.NoError(t, repo.Record(ctx, newJob("old", now.Add(-48*time.Hour))))
			require.NoError(t, repo.Record(ctx, newJob("fresh", now.Add(-time.Hour))))

			n, err := repo.PruneBefore(ctx, now.Add(-24*time.Hour))
			require.NoError(t, err)
			require.Equal(t, 1, n)

			_, err = repo.Get(ctx, "old")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = repo.Get(ctx, "fresh")
			require.NoError(t, err)
			require.NoError(t, repo.Ping(ctx))
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{dialect: DialectPostgres}
	require.Equal(t, "SELECT * FROM jobs WHERE id = $1 AND status = $2", pg.rebind("SELECT * FROM jobs WHERE id = ? AND status = ?"))

	lite := &SQLRepository{dialect: DialectSQLite}
	require.Equal(t, "WHERE id = ?", lite.rebind("WHERE id = ?"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "", testLogger())
	require.NoError(t, err)
	require.IsType(t, &MemoryRepository{}, repo)

	path := filepath.Join(t.TempDir(), "jobs.db")
	repo, err = Open(ctx, "sqlite://"+path, testLogger())
	require.NoError(t, err)
	require.IsType(t, &SQLRepository{}, repo)
	require.NoError(t, repo.Record(ctx, newJob("persisted", time.Now())))
	require.NoError(t, repo.Close())

	// Повторное открытие: миграции идемпотентны, данные сохранены
	repo, err = Open(ctx, "sqlite://"+path, testLogger())
	require.NoError(t, err)
	_, err = repo.Get(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, "mysql://localhost/db", testLogger())
	require.Error(t, err)
}
