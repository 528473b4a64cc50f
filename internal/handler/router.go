package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/assigndesk/internal/desk"
	"github.com/hitoshi/assigndesk/internal/metrics"
	"github.com/hitoshi/assigndesk/internal/middleware"
)

// HealthChecker はストレージの疎通確認インターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// TrustProxy がtrueの場合、X-Forwarded-For等からクライアントIPを決定する。
	TrustProxy bool
	Logger     *slog.Logger

	// イベントの一括読み書き
	Events EventsStore
	// デスク操作とフィード取り込み
	Desk interface {
		DeskService
		FeedImporter
	}

	// HealthChecker はnilの場合ストレージの疎通確認を省略する。
	HealthChecker HealthChecker

	// Metrics と MetricsGatherer はnilの場合メトリクスを無効にする。
	Metrics         middleware.StatusObserver
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Logging → Recovery → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
// 外部フィードを取得する /feed-import と /events/visible?mode=feed には取り込み用の制限を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler)

	r.Use(chimw.RequestID)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	eventsHandler := NewEventsHandler(deps.Events, logger)
	feedImportHandler := NewFeedImportHandler(deps.Desk, logger)
	deskHandler := NewDeskHandler(deps.Desk, logger)

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// GET/POST以外は405（Allow: GET, POST）
		r.With(middleware.NewMethodGuard(http.MethodGet, http.MethodPost)).
			Handle("/events", eventsHandler)

		// フィード取り込みは専用のレート制限を追加
		importChain := r.With(middleware.NewMethodGuard(http.MethodGet))
		if deps.RateLimiter != nil {
			importChain = importChain.With(deps.RateLimiter.FeedImportMiddleware())
		}
		importChain.Handle("/feed-import", feedImportHandler)

		// フィード表示モードは外部フィードを取得するため取り込みと同じ制限を共有する
		visible := http.Handler(http.HandlerFunc(deskHandler.Visible))
		if deps.RateLimiter != nil {
			visible = limitFeedMode(deps.RateLimiter.FeedImportMiddleware(), visible)
		}
		r.Method(http.MethodGet, "/events/visible", visible)

		r.Route("/desk", func(r chi.Router) {
			r.Post("/events", deskHandler.Create)
			r.Route("/events/{id}", func(r chi.Router) {
				r.Put("/", deskHandler.Update)
				r.Delete("/", deskHandler.Delete)
				r.Post("/claim", deskHandler.Claim)
				r.Patch("/start", deskHandler.Reschedule)
			})
			r.Post("/import", deskHandler.Import)
		})
	})

	return r
}

// limitFeedMode はmode=feedのリクエストにだけlimitを適用する。
func limitFeedMode(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if desk.Mode(strings.TrimSpace(r.URL.Query().Get("mode"))) == desk.ModeFeed {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthHandler はプロセスとストレージの稼働状態を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
