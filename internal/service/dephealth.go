// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// docgate мониторит только настроенные сетевые зависимости:
//   - JWKS endpoint (HTTP GET, critical) — если включена аутентификация
//   - PostgreSQL журнала заданий (через пул *sql.DB, critical) — если журнал в PostgreSQL
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDependencies — ни одна сетевая зависимость не настроена.
var ErrNoDependencies = errors.New("нет сетевых зависимостей для мониторинга")

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках
	Group string
	// JWKSURL — URL JWKS (пусто — не мониторится)
	JWKSURL string
	// TLSSkipVerify — не проверять сертификат JWKS
	TLSSkipVerify bool
	// DB — пул журнала в PostgreSQL (nil — не мониторится)
	DB *sql.DB
	// DatabaseURL — DSN PostgreSQL, только для лейблов метрик
	DatabaseURL string
	// CheckInterval — интервал проверки
	CheckInterval time.Duration
	// Registerer — Prometheus registerer (nil — глобальный)
	Registerer prometheus.Registerer
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Возвращает ErrNoDependencies, если мониторить нечего.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	deps := 0
	if cfg.JWKSURL != "" {
		u, err := url.Parse(cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("некорректный JWKS URL: %w", err)
		}
		jwksOpts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.JWKSURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(cfg.TLSSkipVerify),
		}
		// Проверяется сам JWKS, а не /health сервера ключей
		if u.Path != "" {
			jwksOpts = append(jwksOpts, dephealth.WithHTTPHealthPath(u.Path))
		}
		opts = append(opts, dephealth.HTTP("jwks", jwksOpts...))
		deps++
	}
	if cfg.DB != nil {
		// Проверка через пул журнала отражает реальную доступность БД для записи заданий
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.DatabaseURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		))
		deps++
	}
	if deps == 0 {
		return nil, ErrNoDependencies
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
