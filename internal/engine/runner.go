// Пакет engine — движки конвертации. Внешние инструменты (LibreOffice,
// pdf2docx, pdftoppm, tesseract) вызываются как отдельные процессы через
// Runner; чтение текстового слоя PDF, сборка PDF из изображений и генерация
// DOCX выполняются в процессе.
package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// stderrTail — сколько последних байт stderr попадает в лог при ошибке.
const stderrTail = 2048

// engineCallsTotal — вызовы внешних движков по результату.
var engineCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dg_engine_calls_total",
		Help: "Общее количество вызовов внешних движков",
	},
	[]string{"engine", "result"},
)

// Runner запускает внешний инструмент и возвращает его stdout.
// Ошибки возвращаются в таксономии model.Error: отсутствие бинарника —
// EngineUnavailable, ненулевой код возврата или истечение времени — ConversionFailed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Available проверяет, что инструмент найден.
	Available(name string) bool
}

// ExecRunner — Runner на основе os/exec с предельным временем вызова.
type ExecRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecRunner создаёт ExecRunner. timeout == 0 — без ограничения (кроме ctx).
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		timeout: timeout,
		logger:  logger.With(slog.String("component", "engine_runner")),
	}
}

// Available проверяет наличие инструмента в PATH (или по абсолютному пути).
func (r *ExecRunner) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Run запускает инструмент name с аргументами args.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		engineCallsTotal.WithLabelValues(name, "unavailable").Inc()
		return nil, model.NewError(model.KindEngineUnavailable, err, "инструмент %s не найден", name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	if err != nil {
		tail := tailOf(stderr.String(), stderrTail)
		if ctxErr := ctx.Err(); ctxErr != nil {
			engineCallsTotal.WithLabelValues(name, "timeout").Inc()
			r.logger.Warn("Движок прерван по истечении времени",
				slog.String("engine", name),
				slog.Duration("duration", duration),
				slog.String("stderr", tail),
			)
			return nil, model.NewError(model.KindConversionFailed, ctxErr, "%s прерван", name)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			engineCallsTotal.WithLabelValues(name, "error").Inc()
			r.logger.Warn("Движок завершился с ошибкой",
				slog.String("engine", name),
				slog.Int("exit_code", exitErr.ExitCode()),
				slog.Duration("duration", duration),
				slog.String("stderr", tail),
			)
			return nil, model.NewError(model.KindConversionFailed, err, "%s завершился с кодом %d", name, exitErr.ExitCode())
		}

		if errors.Is(err, exec.ErrNotFound) {
			engineCallsTotal.WithLabelValues(name, "unavailable").Inc()
			return nil, model.NewError(model.KindEngineUnavailable, err, "инструмент %s не найден", name)
		}

		engineCallsTotal.WithLabelValues(name, "error").Inc()
		return nil, model.NewError(model.KindConversionFailed, err, "ошибка запуска %s", name)
	}

	engineCallsTotal.WithLabelValues(name, "success").Inc()
	r.logger.Debug("Движок отработал",
		slog.String("engine", name),
		slog.Duration("duration", duration),
	)
	return stdout.Bytes(), nil
}

// tailOf возвращает последние n байт строки без разрыва UTF-8 последовательности.
func tailOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && s[0]&0xC0 == 0x80 {
		s = s[1:]
	}
	return s
}

// checkOutput проверяет, что движок оставил непустой файл.
func checkOutput(path, engine string) error {
	size, err := fileSize(path)
	if err != nil {
		return model.NewError(model.KindConversionFailed, err, "%s не создал результат", engine)
	}
	if size == 0 {
		return model.NewError(model.KindConversionFailed, nil, "%s создал пустой результат", engine)
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
