package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxRetryBackoff は再試行間隔の上限。
const maxRetryBackoff = 5 * time.Second

// statusError はフィード提供元が2xx以外を返したことを表す。
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.code)
}

// isTransient は再試行で回復しうる失敗かどうかを返す。
// 通信エラーと429/5xxは一時的、それ以外（404、パース失敗、サイズ超過など）は恒久的とみなす。
func isTransient(outcome string, err error) bool {
	switch outcome {
	case FetchOutcomeHTTPError:
		return true
	case FetchOutcomeBadStatus:
		var se *statusError
		if !errors.As(err, &se) {
			return false
		}
		return se.code == http.StatusTooManyRequests || se.code >= 500
	default:
		return false
	}
}

// retryDelay は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回initial、2倍ずつ増加、最大maxRetryBackoff。
func retryDelay(retry int, initial time.Duration) time.Duration {
	delay := initial
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay > maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}

// fetchWithRetry は一時的な失敗に限りMaxAttempts回までfetchを繰り返す。
// ctxがキャンセルされた場合は待機を打ち切って直前の失敗を返す。
func (s *Service) fetchWithRetry(ctx context.Context) (*gofeed.Feed, string, error) {
	for attempt := 1; ; attempt++ {
		parsed, outcome, err := s.fetch(ctx)
		if err == nil || attempt >= s.config.MaxAttempts || !isTransient(outcome, err) {
			return parsed, outcome, err
		}

		delay := retryDelay(attempt-1, s.config.RetryBackoff)
		s.logger.Warn("フィードの取得を再試行します",
			slog.String("feed_url", s.config.URL),
			slog.Int("attempt", attempt),
			slog.String("outcome", outcome),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, outcome, err
		case <-timer.C:
		}
	}
}
