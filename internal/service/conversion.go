// Пакет service — бизнес-логика docgate.
// conversion.go — сервис конвертации: проверка → размещение → диспетчер →
// упаковка → журнал → удаление входных файлов.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/docgate/internal/convert"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/intake"
	"github.com/bigkaa/docgate/internal/jobs"
	"github.com/bigkaa/docgate/internal/packager"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// Бизнес-метрики конвертации
var (
	// conversionsTotal — количество конвертаций по операции и результату.
	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dg_conversions_total",
			Help: "Общее количество конвертаций",
		},
		[]string{"operation", "result"},
	)

	// conversionDuration — длительность конвертации.
	conversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dg_conversion_duration_seconds",
			Help:    "Длительность конвертации в секундах",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)
)

// Dispatcher — диспетчер конвертации.
type Dispatcher interface {
	Convert(ctx context.Context, op model.Operation, inputs []string) (*convert.Artifact, error)
	ConvertText(ctx context.Context, op model.Operation, text string) (*convert.Artifact, error)
	EngineStatus() map[string]bool
}

// Upload — загруженный клиентом файл.
type Upload struct {
	// Filename — имя файла, указанное клиентом
	Filename string
	// Reader — содержимое
	Reader io.Reader
}

// Result — результат конвертации для выдачи клиенту.
type Result struct {
	// Job — запись журнала
	Job *model.Job
	// Path — путь к выдаваемому файлу (пусто для текстовых результатов)
	Path string
	// DownloadName — имя файла для Content-Disposition
	DownloadName string
	// Text — текстовый результат
	Text string
}

// ConversionOptions — параметры сервиса конвертации.
type ConversionOptions struct {
	// DeleteInputs — удалять загруженные файлы после успешной конвертации
	DeleteInputs bool
}

// ConversionService — сервис конвертации.
type ConversionService struct {
	areas      *filestore.Areas
	validator  *intake.Validator
	dispatcher Dispatcher
	packager   *packager.Packager
	journal    jobs.Repository
	opts       ConversionOptions
	logger     *slog.Logger

	now func() time.Time
}

// NewConversionService создаёт сервис конвертации.
func NewConversionService(
	areas *filestore.Areas,
	validator *intake.Validator,
	dispatcher Dispatcher,
	pkg *packager.Packager,
	journal jobs.Repository,
	opts ConversionOptions,
	logger *slog.Logger,
) *ConversionService {
	return &ConversionService{
		areas:      areas,
		validator:  validator,
		dispatcher: dispatcher,
		packager:   pkg,
		journal:    journal,
		opts:       opts,
		logger:     logger.With(slog.String("component", "conversion")),
		now:        time.Now,
	}
}

// ConvertFiles выполняет файловую операцию над загруженными файлами.
// subject — sub из JWT (пусто без аутентификации).
func (s *ConversionService) ConvertFiles(ctx context.Context, op model.Operation, uploads []Upload, subject string) (*Result, error) {
	job := s.newJob(op, subject)
	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = filestore.BaseName(u.Filename)
	}
	job.InputName = strings.Join(names, ",")

	if len(uploads) == 0 {
		return nil, s.fail(ctx, job, model.NewError(model.KindInvalidFileType, nil, "файл не передан"))
	}

	// Все имена проверяются до записи на диск
	for _, name := range names {
		if err := s.validator.ValidateName(name, op); err != nil {
			return nil, s.fail(ctx, job, model.WithContext(err, op, name))
		}
	}

	staged := make([]*filestore.SaveResult, 0, len(uploads))
	for i, u := range uploads {
		saved, err := s.areas.Uploads.SaveFile(u.Reader, names[i])
		if err != nil {
			s.removeStaged(staged)
			return nil, s.fail(ctx, job, fmt.Errorf("ошибка сохранения %s: %w", names[i], err))
		}
		staged = append(staged, saved)
	}
	job.InputChecksum = staged[0].Checksum

	inputs := make([]string, len(staged))
	for i, saved := range staged {
		if err := s.validator.ValidateContent(saved.FullPath, names[i], op); err != nil {
			s.removeStaged(staged)
			return nil, s.fail(ctx, job, model.WithContext(err, op, names[i]))
		}
		inputs[i] = saved.FullPath
	}

	art, err := s.dispatcher.Convert(ctx, op, inputs)
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}

	result := &Result{Job: job, Text: art.Text}
	if len(art.Paths) > 0 {
		job.OutputCount = len(art.Paths)
		if err := s.deliverFiles(result, art, names[0]); err != nil {
			return nil, s.fail(ctx, job, model.WithContext(err, op, names[0]))
		}
	}

	if s.opts.DeleteInputs {
		s.removeStaged(staged)
	}
	s.succeed(ctx, job)
	return result, nil
}

// ConvertText выполняет текстовую операцию (text_format, text_to_docx).
func (s *ConversionService) ConvertText(ctx context.Context, op model.Operation, text, subject string) (*Result, error) {
	job := s.newJob(op, subject)

	art, err := s.dispatcher.ConvertText(ctx, op, text)
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}

	result := &Result{Job: job, Text: art.Text}
	if len(art.Paths) > 0 {
		job.OutputCount = len(art.Paths)
		result.Path = art.Paths[0]
		result.DownloadName = "extracted_text.docx"
		job.OutputName = filepath.Base(result.Path)
	}
	s.succeed(ctx, job)
	return result, nil
}

// EngineStatus возвращает доступность внешних движков.
func (s *ConversionService) EngineStatus() map[string]bool {
	return s.dispatcher.EngineStatus()
}

// deliverFiles выбирает выдаваемый файл: единственный результат отдаётся
// как есть, несколько — упаковываются в архив, после чего исходные
// страницы удаляются.
func (s *ConversionService) deliverFiles(result *Result, art *convert.Artifact, inputName string) error {
	stem := strings.TrimSuffix(inputName, filepath.Ext(inputName))

	if len(art.Paths) == 1 {
		result.Path = art.Paths[0]
		result.DownloadName = downloadName(art.Operation, stem, filepath.Ext(result.Path))
		result.Job.OutputName = filepath.Base(result.Path)
		return nil
	}

	archive, err := s.packager.Package(art.Paths)
	s.removeOutputs(art.Paths)
	if err != nil {
		return err
	}
	result.Path = archive
	result.DownloadName = stem + "_images.zip"
	result.Job.OutputName = filepath.Base(archive)
	return nil
}

// downloadName формирует имя файла для клиента.
func downloadName(op model.Operation, stem, ext string) string {
	switch op {
	case model.OpJPGToPDF:
		return "merged_images" + ext
	case model.OpPDFToJPG:
		return stem + "_page_1" + ext
	default:
		return stem + ext
	}
}

func (s *ConversionService) newJob(op model.Operation, subject string) *model.Job {
	return &model.Job{
		ID:        uuid.NewString(),
		Operation: op,
		Subject:   subject,
		CreatedAt: s.now().UTC(),
	}
}

// succeed фиксирует успешное задание в журнале и метриках.
func (s *ConversionService) succeed(ctx context.Context, job *model.Job) {
	job.Status = model.JobSucceeded
	job.DurationMs = s.now().Sub(job.CreatedAt).Milliseconds()
	s.record(ctx, job)

	conversionsTotal.WithLabelValues(string(job.Operation), "success").Inc()
	conversionDuration.WithLabelValues(string(job.Operation)).Observe(float64(job.DurationMs) / 1000)

	s.logger.Info("Конвертация выполнена",
		slog.String("job_id", job.ID),
		slog.String("operation", string(job.Operation)),
		slog.String("input", job.InputName),
		slog.Int("outputs", job.OutputCount),
		slog.Int64("duration_ms", job.DurationMs),
	)
}

// fail фиксирует неудачное задание и возвращает err.
func (s *ConversionService) fail(ctx context.Context, job *model.Job, err error) error {
	job.Status = model.JobFailed
	job.DurationMs = s.now().Sub(job.CreatedAt).Milliseconds()
	job.ErrorKind = model.KindOf(err)
	job.ErrorMessage = err.Error()
	s.record(ctx, job)

	result := "error"
	if job.ErrorKind != "" {
		result = string(job.ErrorKind)
	}
	conversionsTotal.WithLabelValues(string(job.Operation), result).Inc()

	s.logger.Warn("Конвертация не выполнена",
		slog.String("job_id", job.ID),
		slog.String("operation", string(job.Operation)),
		slog.String("input", job.InputName),
		slog.String("kind", string(job.ErrorKind)),
		slog.String("error", err.Error()),
	)
	return err
}

// record пишет задание в журнал. Ошибка журнала не влияет на ответ клиенту.
func (s *ConversionService) record(ctx context.Context, job *model.Job) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("Ошибка записи в журнал заданий",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ConversionService) removeStaged(staged []*filestore.SaveResult) {
	for _, saved := range staged {
		if err := s.areas.Uploads.DeleteFile(saved.StoragePath); err != nil {
			s.logger.Warn("Ошибка удаления загруженного файла",
				slog.String("path", saved.StoragePath),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *ConversionService) removeOutputs(paths []string) {
	for _, p := range paths {
		if err := s.areas.Converted.DeleteFile(filepath.Base(p)); err != nil {
			s.logger.Warn("Ошибка удаления промежуточного результата",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}
