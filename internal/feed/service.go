// Package feed は外部キャンパスイベントRSSフィードから取材候補を取り込む。
// 取得 → パース → 期間フィルタ → 整形 → 並べ替えを1回のリクエストで行い、結果は保存しない。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/assigndesk/internal/model"
)

// 既定値
const (
	DefaultURL          = "https://montclair.campuslabs.com/engage/events.rss"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodySize  = 5 * 1024 * 1024
	DefaultWindowMonths = 3
	DefaultMaxAttempts  = 1
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultUserAgent はブラウザ相当のUser-Agent。フィード提供元がボットを弾くため。
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// maxDescriptionLength は候補イベントの説明文の最大文字数。超えた分は切り詰めて"..."を付ける。
const maxDescriptionLength = 200

// StoryTypeEvent はフィード由来の候補に付与するストーリー種別。
const StoryTypeEvent = "EVENT"

// isoMillisLayout はJavaScriptのtoISOStringと同じUTC表記。
const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// フェッチ結果のメトリクスラベル
const (
	FetchOutcomeSuccess    = "success"
	FetchOutcomeInvalidURL = "invalid_url"
	FetchOutcomeHTTPError  = "http_error"
	FetchOutcomeBadStatus  = "bad_status"
	FetchOutcomeTooLarge   = "too_large"
	FetchOutcomeParseError = "parse_error"
)

// 記事ごとの判定結果のメトリクスラベル
const (
	ItemOutcomeIncluded    = "included"
	ItemOutcomeOutOfWindow = "out_of_window"
	ItemOutcomeInvalid     = "invalid"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// TextSanitizer はHTMLからプレーンテキストを取り出すインターフェース。
type TextSanitizer interface {
	PlainText(rawHTML string) string
}

// FetchMetrics はフィード取り込みのメトリクス記録インターフェース。
type FetchMetrics interface {
	RecordFeedFetch(outcome string, duration time.Duration)
	RecordFeedItems(outcome string, count int)
}

// Config はフィード取り込みの設定を保持する。
type Config struct {
	URL          string
	Timeout      time.Duration
	MaxBodySize  int64
	WindowMonths int
	UserAgent    string
	// MaxAttempts は一時的な失敗（通信エラー、429、5xx）時の最大試行回数。既定の1では再試行しない。
	MaxAttempts  int
	RetryBackoff time.Duration
	// Location はオフセットを持たない日時を解釈するタイムゾーン。nilの場合はUTC。
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.WindowMonths <= 0 {
		c.WindowMonths = DefaultWindowMonths
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Service は外部フィードから取材候補イベントを取り込むサービス。状態は持たない。
type Service struct {
	config    Config
	ssrfGuard SSRFValidator
	sanitizer TextSanitizer
	metrics   FetchMetrics
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsとloggerはnilでもよい。
func NewService(
	config Config,
	ssrfGuard SSRFValidator,
	sanitizer TextSanitizer,
	metrics FetchMetrics,
	logger *slog.Logger,
) *Service {
	if metrics == nil {
		metrics = nopFetchMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:    config.withDefaults(),
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchUpcoming はフィードを取得し、now以降かつnow+WindowMonthsヶ月以内に始まる
// イベントを開始日時の降順で返す。
// フィード全体の取得・解析に失敗した場合はFeedUnavailableエラーを返す。
// 個々の記事の不備はログに記録してスキップし、全体を失敗させない。
func (s *Service) FetchUpcoming(ctx context.Context, now time.Time) ([]model.Event, error) {
	start := time.Now()

	parsed, outcome, err := s.fetchWithRetry(ctx)
	s.metrics.RecordFeedFetch(outcome, time.Since(start))
	if err != nil {
		s.logger.Error("フィードの取得に失敗しました",
			slog.String("feed_url", s.config.URL),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFeedUnavailableError(err)
	}

	windowEnd := now.AddDate(0, s.config.WindowMonths, 0)

	type candidate struct {
		event model.Event
		start time.Time
	}
	candidates := make([]candidate, 0, len(parsed.Items))
	var outOfWindow, invalid int

	for i, item := range parsed.Items {
		event, startAt, err := s.convertItem(item)
		if err != nil {
			invalid++
			s.logger.Warn("フィード記事をスキップしました",
				slog.Int("index", i+1),
				slog.String("title", item.Title),
				slog.String("error", err.Error()),
			)
			continue
		}
		if startAt.Before(now) || startAt.After(windowEnd) {
			outOfWindow++
			continue
		}
		candidates = append(candidates, candidate{event: event, start: startAt})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].start.After(candidates[j].start)
	})

	events := make([]model.Event, len(candidates))
	for i, c := range candidates {
		events[i] = c.event
	}

	s.metrics.RecordFeedItems(ItemOutcomeIncluded, len(events))
	s.metrics.RecordFeedItems(ItemOutcomeOutOfWindow, outOfWindow)
	s.metrics.RecordFeedItems(ItemOutcomeInvalid, invalid)

	s.logger.Info("フィードを取り込みました",
		slog.String("feed_url", s.config.URL),
		slog.Int("items", len(parsed.Items)),
		slog.Int("included", len(events)),
		slog.Int("out_of_window", outOfWindow),
		slog.Int("invalid", invalid),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return events, nil
}

// fetch はフィードをHTTPで取得してパースする。失敗時はメトリクス用の結果ラベルも返す。
func (s *Service) fetch(ctx context.Context) (*gofeed.Feed, string, error) {
	if err := s.ssrfGuard.ValidateURL(s.config.URL); err != nil {
		return nil, FetchOutcomeInvalidURL, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return nil, FetchOutcomeInvalidURL, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	client := s.ssrfGuard.NewSafeClient(s.config.Timeout, s.config.MaxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, FetchOutcomeHTTPError, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, FetchOutcomeBadStatus, &statusError{code: resp.StatusCode}
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize+1))
	if err != nil {
		return nil, FetchOutcomeHTTPError, fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return nil, FetchOutcomeTooLarge, fmt.Errorf("feed exceeds %d bytes", s.config.MaxBodySize)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, FetchOutcomeParseError, fmt.Errorf("フィードのパースに失敗: %w", err)
	}
	return parsed, FetchOutcomeSuccess, nil
}

// convertItem はフィード記事を候補イベントに変換する。開始日時が無い・解釈できない場合はエラー。
func (s *Service) convertItem(item *gofeed.Item) (model.Event, time.Time, error) {
	description := item.Description
	if description == "" {
		description = item.Content
	}

	markup, err := parseEventMarkup(description)
	if err != nil {
		return model.Event{}, time.Time{}, err
	}
	if markup.Start == "" {
		return model.Event{}, time.Time{}, fmt.Errorf("dt-startがありません")
	}
	startAt, err := model.ParseEventTime(markup.Start, s.config.Location)
	if err != nil {
		return model.Event{}, time.Time{}, fmt.Errorf("dt-startを解釈できません: %w", err)
	}

	var end string
	if markup.End != "" {
		if endAt, err := model.ParseEventTime(markup.End, s.config.Location); err == nil {
			end = formatISO(endAt)
		}
	}

	title := strings.TrimSpace(item.Title)
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = Slugify(title)
	}

	event := model.Event{
		ID:    model.FeedEventIDPrefix + id,
		Title: title,
		Start: formatISO(startAt),
		End:   end,
		ExtendedProps: model.ExtendedProps{
			Slug:        Slugify(title),
			StoryType:   StoryTypeEvent,
			Description: truncate(s.sanitizer.PlainText(description), maxDescriptionLength),
			Location:    markup.Location,
			Status:      model.StatusAvailable,
		},
	}
	return event.Normalize(), startAt, nil
}

var nonAlphanumericRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify はタイトルを小文字化し、英数字以外の連続を"-"1文字に置き換える。
func Slugify(title string) string {
	return nonAlphanumericRun.ReplaceAllString(strings.ToLower(title), "-")
}

// truncate はlimitを超える文字列をlimit文字で切り詰めて"..."を付ける。
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillisLayout)
}

type nopFetchMetrics struct{}

func (nopFetchMetrics) RecordFeedFetch(string, time.Duration) {}
func (nopFetchMetrics) RecordFeedItems(string, int)           {}
