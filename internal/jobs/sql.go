package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/jobs/migrations"
)

// Dialect — SQL-диалект журнала.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DBTX — подмножество database/sql, которым пользуется репозиторий.
// Ему удовлетворяют и *sql.DB, и *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// gooseMu — goose хранит базовую FS и диалект глобально.
var gooseMu sync.Mutex

const jobColumns = `id, operation, input_name, input_checksum, output_name, output_count,
	status, error_kind, error_message, subject, created_at_ms, duration_ms`

// SQLRepository — журнал в SQLite или PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	q       DBTX
	dialect Dialect
}

// OpenSQL открывает БД, применяет миграции и возвращает репозиторий.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД журнала: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite допускает одного писателя; для :memory: каждое соединение — своя БД
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("БД журнала недоступна: %w", err)
	}

	if err := RunMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return NewSQLRepository(db, dialect), nil
}

// NewSQLRepository создаёт репозиторий поверх открытой БД с применёнными миграциями.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, q: db, dialect: dialect}
}

// RunMigrations применяет встроенные миграции goose.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	gooseDialect := "sqlite3"
	if dialect == DialectPostgres {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("ошибка выбора диалекта миграций: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("ошибка миграции журнала: %w", err)
	}
	return nil
}

// Record сохраняет задание (upsert по ID).
func (r *SQLRepository) Record(ctx context.Context, job *model.Job) error {
	query := `INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			operation = excluded.operation,
			input_name = excluded.input_name,
			input_checksum = excluded.input_checksum,
			output_name = excluded.output_name,
			output_count = excluded.output_count,
			status = excluded.status,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			subject = excluded.subject,
			created_at_ms = excluded.created_at_ms,
			duration_ms = excluded.duration_ms`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		job.ID, string(job.Operation), job.InputName, job.InputChecksum, job.OutputName, job.OutputCount,
		string(job.Status), string(job.ErrorKind), job.ErrorMessage, job.Subject,
		job.CreatedAt.UnixMilli(), job.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи задания %s: %w", job.ID, err)
	}
	return nil
}

// Get возвращает задание по ID.
func (r *SQLRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.q.QueryRowContext(ctx, r.rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения задания %s: %w", id, err)
	}
	return job, nil
}

// List возвращает страницу заданий (новые первые) и общее количество.
func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]*model.Job, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта заданий: %w", err)
	}
	if offset >= total {
		return nil, total, nil
	}

	if limit <= 0 {
		limit = total
	}
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at_ms DESC, id ASC LIMIT ? OFFSET ?`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки заданий: %w", err)
	}
	defer rows.Close()

	var result []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения задания: %w", err)
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// PruneBefore удаляет задания, созданные раньше before.
func (r *SQLRepository) PruneBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx, r.rebind(`DELETE FROM jobs WHERE created_at_ms < ?`), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Ping проверяет соединение с БД.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB возвращает пул соединений (для мониторинга зависимостей).
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// Dialect возвращает диалект журнала.
func (r *SQLRepository) Dialect() Dialect {
	return r.dialect
}

// Close закрывает БД.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind заменяет плейсхолдеры ? на $1, $2, … для PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*model.Job, error) {
	var (
		job              model.Job
		op, status, kind string
		createdAtMs      int64
	)
	err := s.Scan(&job.ID, &op, &job.InputName, &job.InputChecksum, &job.OutputName, &job.OutputCount,
		&status, &kind, &job.ErrorMessage, &job.Subject, &createdAtMs, &job.DurationMs)
	if err != nil {
		return nil, err
	}
	job.Operation = model.Operation(op)
	job.Status = model.JobStatus(status)
	job.ErrorKind = model.ErrorKind(kind)
	job.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return &job, nil
}
