package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/assigndesk/internal/config"
	"github.com/hitoshi/assigndesk/internal/database"
	"github.com/hitoshi/assigndesk/internal/desk"
	"github.com/hitoshi/assigndesk/internal/feed"
	"github.com/hitoshi/assigndesk/internal/handler"
	"github.com/hitoshi/assigndesk/internal/logger"
	"github.com/hitoshi/assigndesk/internal/metrics"
	"github.com/hitoshi/assigndesk/internal/middleware"
	"github.com/hitoshi/assigndesk/internal/repository"
	"github.com/hitoshi/assigndesk/internal/security"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めなくてもエラーを記録できるよう既定のJSONログを用意する
		logger.SetupDefault(w)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefaultWithOptions(w, logger.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
	})
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = os.Getenv("SERVER_PORT")
		}
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandFetchFeed:
		return runFetchFeed(ctx, cfg, os.Stdout)
	default:
		return runServe(ctx, cfg)
	}
}

// application はserveモードで組み立てた依存関係一式。
type application struct {
	router      http.Handler
	rateLimiter *middleware.RateLimiter
	storage     *storage
}

// newApplication はストレージを開き、全依存関係をワイヤリングする。
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := slog.Default()

	// 1. メトリクス（無効時はnilのまま各コンポーネントに渡す）
	var collector metrics.MetricsCollector
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(reg)
		gatherer = reg
	}

	// 2. ストレージとリポジトリ
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := repository.NewBlobEventsRepo(st.store, repository.EventsRepoConfig{
		Key:        cfg.EventsKey,
		Timeout:    cfg.StorageTimeout,
		Permissive: cfg.StoragePermissive,
	}, collector, log)

	// 3. フィード取り込みとデスク操作
	feedService := newFeedService(cfg, collector, log)
	controller := desk.NewController(repo, feedService, desk.ControllerConfig{
		Location:  cfg.Location,
		WeekStart: cfg.WeekStart,
	}, collector, log)

	// 4. ルーター
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		FeedImportRate:  rate.Limit(float64(cfg.RateLimitFeedImport) / 60.0),
		FeedImportBurst: cfg.RateLimitFeedImport,
	}, collector, log)

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		TrustProxy:        cfg.TrustProxy,
		Logger:            log,
		Events:            repo,
		Desk:              controller,
		HealthChecker:     st.health,
		Metrics:           collector,
		MetricsGatherer:   gatherer,
	})

	return &application{router: router, rateLimiter: rl, storage: st}, nil
}

// Close はバックグラウンド処理を止め、ストレージを閉じる。
func (a *application) Close() error {
	a.rateLimiter.Stop()
	return a.storage.close()
}

// newFeedService はSSRF対策済みのクライアントを使うフィード取り込みサービスを生成する。
func newFeedService(cfg *config.Config, m feed.FetchMetrics, log *slog.Logger) *feed.Service {
	return feed.NewService(feed.Config{
		URL:          cfg.FeedURL,
		Timeout:      cfg.FeedTimeout,
		MaxBodySize:  cfg.FeedMaxSize,
		WindowMonths: cfg.FeedWindowMonths,
		MaxAttempts:  cfg.FeedMaxAttempts,
		Location:     cfg.Location,
	}, security.NewSSRFGuard(), security.NewTextSanitizer(), m, log)
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// フィード取り込みのタイムアウトより長くする
		WriteTimeout: cfg.FeedTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLのblobsテーブルのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runFetchFeed はフィードを1回取り込み、候補イベントをJSONでoutに書き出す。
// 保存は行わない。
func runFetchFeed(ctx context.Context, cfg *config.Config, out io.Writer) error {
	events, err := newFeedService(cfg, nil, slog.Default()).FetchUpcoming(ctx, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("failed to write feed events: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
