// docgate-devauth — выпуск токенов для локальной разработки и e2e-тестов docgate.
// Генерирует RSA-ключ при старте, отдаёт JWKS по GET /jwks
// и подписывает JWT по POST /token. Не предназначен для production.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/docgate/internal/api/middleware"
)

const (
	keyID      = "docgate-dev-1"
	issuer     = "docgate-devauth"
	defaultTTL = time.Hour
)

// devConfig — параметры сервиса из переменных окружения.
type devConfig struct {
	Port    string
	TLSCert string
	TLSKey  string
	KeySize int
}

func loadConfig() devConfig {
	cfg := devConfig{
		Port:    envOrDefault("DEVAUTH_PORT", "8081"),
		TLSCert: os.Getenv("DEVAUTH_TLS_CERT"),
		TLSKey:  os.Getenv("DEVAUTH_TLS_KEY"),
		KeySize: 2048,
	}
	if v := os.Getenv("DEVAUTH_KEY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size >= 2048 {
			cfg.KeySize = size
		}
	}
	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// tokenRequest — тело POST /token. Без scopes выдаётся docgate:jobs.
type tokenRequest struct {
	Sub        string   `json:"sub"`
	Scopes     []string `json:"scopes"`
	TTLSeconds int      `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// tokenIssuer хранит ключ подписи и кэшированный публичный JWKS.
type tokenIssuer struct {
	key    *rsa.PrivateKey
	jwks   json.RawMessage
	logger *slog.Logger
}

// newTokenIssuer публикует открытую часть ключа в JWKS.
func newTokenIssuer(ctx context.Context, key *rsa.PrivateKey, logger *slog.Logger) (*tokenIssuer, error) {
	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: keyID,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWK: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("запись JWK: %w", err)
	}
	raw, err := storage.JSONPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("сериализация JWKS: %w", err)
	}

	return &tokenIssuer{
		key:    key,
		jwks:   raw,
		logger: logger.With(slog.String("component", "devauth")),
	}, nil
}

func (s *tokenIssuer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/jwks", s.handleJWKS)
	r.Post("/token", s.handleToken)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (s *tokenIssuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.jwks)
}

func (s *tokenIssuer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Невалидный JSON: "+err.Error())
		return
	}
	if req.Sub == "" {
		writeError(w, http.StatusBadRequest, "Поле 'sub' обязательно")
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{middleware.ScopeJobs}
	}
	ttl := defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, expires, err := s.sign(req.Sub, req.Scopes, ttl)
	if err != nil {
		s.logger.Error("Ошибка подписи JWT", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Ошибка генерации токена")
		return
	}

	s.logger.Info("Токен выдан",
		slog.String("sub", req.Sub),
		slog.Any("scopes", req.Scopes),
		slog.Duration("ttl", ttl),
	)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires})
}

// sign выпускает RS256-токен с claims, которые понимает JWT middleware docgate.
func (s *tokenIssuer) sign(sub string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		ScopeArray: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(s.key)
	return signed, expires.UTC(), err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    "VALIDATION_ERROR",
			"message": message,
		},
	})
}

func main() {
	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg devConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Генерация RSA ключевой пары", slog.Int("key_size", cfg.KeySize))
	key, err := rsa.GenerateKey(rand.Reader, cfg.KeySize)
	if err != nil {
		return fmt.Errorf("генерация RSA ключа: %w", err)
	}

	iss, err := newTokenIssuer(ctx, key, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           iss.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			logger.Info("docgate-devauth запущен (HTTPS)", slog.String("addr", srv.Addr))
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		logger.Warn("TLS не настроен, docgate-devauth работает по HTTP", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
