package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/joho/godotenv"

	"smartseller/backend/internal/cache"
	"smartseller/backend/internal/config"
	"smartseller/backend/internal/httpapi"
	"smartseller/backend/internal/interpreter"
	"smartseller/backend/internal/logger"
	"smartseller/backend/internal/market"
	"smartseller/backend/internal/metrics"
	"smartseller/backend/internal/service"
	"smartseller/backend/internal/store"
	boltstore "smartseller/backend/internal/store/bolt"
	"smartseller/backend/internal/store/memory"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger.Init("smartseller", cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)
	log := logger.Component("main")

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store unavailable")
	}
	closers = append(closers, repo.Close)
	log.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.DataPath).Msg("repository ready")

	assistant := newAssistant(ctx, cfg)

	reportCache := cache.MarketReportCache(cache.NewMemoryMarketReportCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisMarketReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process market cache")
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: in-process")
	}

	m := metrics.New()
	advisor := market.NewEngine(assistant, reportCache, cfg.MarketCacheTTL)
	svc := service.New(repo, assistant, advisor, cfg.LowStockThreshold)
	svc.SetMetrics(m)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.OwnerPassword, cfg.CashierPassword)
	api := httpapi.New(svc, auth, m, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.AITimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("smartseller backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// openStore opens and initializes the configured record store. The memory
// driver starts with a demo catalog.
func openStore(ctx context.Context, cfg config.Config) (store.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return memory.NewSeeded(), nil
	case config.StoreDriverBolt, "":
		db, err := boltstore.Open(cfg.DataPath)
		if err != nil {
			return nil, err
		}
		if err := db.Init(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// newAssistant returns the Gemini interpreter, or one that always reports
// itself unavailable when no key is configured.
func newAssistant(ctx context.Context, cfg config.Config) interpreter.Interpreter {
	log := logger.Component("main")
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, assistant disabled")
		return interpreter.Unavailable{}
	}
	gemini, err := interpreter.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITimeout)
	if err != nil {
		log.Warn().Err(err).Msg("assistant disabled")
		return interpreter.Unavailable{}
	}
	log.Info().Str("model", cfg.GeminiModel).Msg("assistant: gemini")
	return gemini
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.OwnerPassword == "" {
		return fmt.Errorf("OWNER_PASSWORD must be set")
	}
	if err := validatePasswordStrength(cfg.OwnerPassword); err != nil {
		return fmt.Errorf("OWNER_PASSWORD is too weak: %w", err)
	}
	if cfg.CashierPassword != "" {
		if err := validatePasswordStrength(cfg.CashierPassword); err != nil {
			return fmt.Errorf("CASHIER_PASSWORD is too weak: %w", err)
		}
		if cfg.CashierPassword == cfg.OwnerPassword {
			return fmt.Errorf("CASHIER_PASSWORD must differ from OWNER_PASSWORD")
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, a single repeated
// character, straight runs like "abcdefgh" and a short list of common ones.
// Bcrypt hashes are accepted as they are.
func validatePasswordStrength(password string) error {
	if strings.HasPrefix(password, "$2") {
		return nil
	}
	if len(password) < 8 {
		return fmt.Errorf("at least 8 characters required")
	}
	known := map[string]bool{
		"password": true, "12345678": true, "123456789": true, "qwertyui": true,
		"admin123": true, "owner123": true, "kasir123": true, "password1": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("letters and digits required")
	}
	return nil
}
