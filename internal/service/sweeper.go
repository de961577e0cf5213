// sweeper.go — сервис фоновой очистки областей хранения.
//
// Каждый запуск удаляет из всех областей (uploads, converted, temp) записи
// верхнего уровня старше окна хранения (DG_RETENTION) и чистит журнал
// заданий старше DG_JOURNAL_RETENTION. Ошибка на одной записи логируется
// и не прерывает проход.
//
// Запускается как горутина с периодическим тикером (DG_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество проходов очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dg_sweep_runs_total",
		Help: "Общее количество проходов очистки",
	})

	// sweepDeletedTotal — количество удалённых записей по областям.
	sweepDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dg_sweep_deleted_total",
		Help: "Общее количество записей, удалённых очисткой",
	}, []string{"area"})

	// sweepErrorsTotal — количество ошибок удаления.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dg_sweep_errors_total",
		Help: "Общее количество ошибок удаления при очистке",
	})

	// sweepDurationSeconds — длительность прохода очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dg_sweep_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	// Deleted — количество удалённых записей областей
	Deleted int
	// Errors — количество записей, которые не удалось удалить
	Errors int
	// JobsPruned — количество удалённых записей журнала
	JobsPruned int
	// Duration — длительность прохода
	Duration time.Duration
}

// Sweeper — сервис фоновой очистки.
type Sweeper struct {
	areas            []*filestore.FileStore
	journal          jobs.Repository
	retention        time.Duration
	journalRetention time.Duration
	interval         time.Duration
	logger           *slog.Logger

	// now и remove подменяются в тестах
	now    func() time.Time
	remove func(fs *filestore.FileStore, name string) error

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// SweeperConfig — параметры очистки.
type SweeperConfig struct {
	Retention        time.Duration
	JournalRetention time.Duration
	Interval         time.Duration
}

// NewSweeper создаёт сервис очистки. journal может быть nil.
func NewSweeper(areas []*filestore.FileStore, journal jobs.Repository, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		areas:            areas,
		journal:          journal,
		retention:        cfg.Retention,
		journalRetention: cfg.JournalRetention,
		interval:         cfg.Interval,
		logger:           logger.With(slog.String("component", "sweeper")),
		now:              time.Now,
		remove: func(fs *filestore.FileStore, name string) error {
			return fs.RemoveEntry(name)
		},
	}
}

// Start запускает фоновую горутину очистки. Первый проход выполняется сразу.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Очистка запущена",
		slog.String("interval", s.interval.String()),
		slog.String("retention", s.retention.String()),
	)
}

// Stop останавливает фоновую очистку и дожидается завершения текущего прохода.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	cutoff := s.now().Add(-s.retention)

	s.logger.Debug("Проход очистки начат", slog.Time("cutoff", cutoff))

	for _, fs := range s.areas {
		deleted, errs := s.sweepArea(fs, cutoff)
		result.Deleted += deleted
		result.Errors += errs
	}

	if s.journal != nil && s.journalRetention > 0 {
		pruned, err := s.journal.PruneBefore(ctx, s.now().Add(-s.journalRetention))
		if err != nil {
			s.logger.Error("Ошибка очистки журнала заданий", slog.String("error", err.Error()))
			result.Errors++
		}
		result.JobsPruned = pruned
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Проход очистки завершён",
		slog.Int("deleted", result.Deleted),
		slog.Int("errors", result.Errors),
		slog.Int("jobs_pruned", result.JobsPruned),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// sweepArea удаляет записи области, изменённые раньше cutoff.
func (s *Sweeper) sweepArea(fs *filestore.FileStore, cutoff time.Time) (deleted, errors int) {
	entries, err := fs.Entries()
	if err != nil {
		s.logger.Error("Ошибка чтения области",
			slog.String("area", fs.Name()),
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	for _, e := range entries {
		if !e.ModTime.Before(cutoff) {
			continue
		}
		if err := s.remove(fs, e.Name); err != nil {
			s.logger.Error("Ошибка удаления устаревшей записи",
				slog.String("area", fs.Name()),
				slog.String("name", e.Name),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		s.logger.Debug("Устаревшая запись удалена",
			slog.String("area", fs.Name()),
			slog.String("name", e.Name),
			slog.Time("mod_time", e.ModTime),
		)
		sweepDeletedTotal.WithLabelValues(fs.Name()).Inc()
		deleted++
	}
	return deleted, errors
}
