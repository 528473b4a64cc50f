package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/assigndesk/internal/blob"
	"github.com/hitoshi/assigndesk/internal/model"
)

// DefaultEventsKey はイベント一覧を保存するブロブのキー。
const DefaultEventsKey = "events.json"

// NoteNotSaved は寛容モードで保存できなかった場合に返す注記。
const NoteNotSaved = "Not saved due to blob error"

// ブロブ操作のメトリクスラベル
const (
	opRead  = "read"
	opWrite = "write"
	opSeed  = "seed"

	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// EventsRepoConfig はBlobEventsRepoの設定を保持する。
type EventsRepoConfig struct {
	Key        string        // ブロブのキー。空の場合はDefaultEventsKey
	Timeout    time.Duration // ブロブ操作1回あたりのタイムアウト。0以下は無制限
	Permissive bool          // trueの場合、書き込み失敗を劣化扱いにしてエラーを返さない
}

// BlobEventsRepo はブロブストア上の単一JSON配列としてイベントを永続化する。
type BlobEventsRepo struct {
	store   blob.Store
	config  EventsRepoConfig
	metrics StorageMetrics
	logger  *slog.Logger
}

// NewBlobEventsRepo はBlobEventsRepoを生成する。
// metricsとloggerはnilでもよい。
func NewBlobEventsRepo(store blob.Store, config EventsRepoConfig, metrics StorageMetrics, logger *slog.Logger) *BlobEventsRepo {
	if config.Key == "" {
		config.Key = DefaultEventsKey
	}
	if metrics == nil {
		metrics = nopStorageMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobEventsRepo{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// DefaultEvents は初回アクセス時に保存する既定のサンプルイベントを返す。
// 呼び出しごとに新しいスライスを返す。
func DefaultEvents() []model.Event {
	return []model.Event{
		{
			ID:    "1",
			Title: "WiFi–Campus–1006",
			Start: "2025-10-07T10:30:00",
			ExtendedProps: model.ExtendedProps{
				Slug:        "WiFi–Campus–1006",
				StoryType:   "VO_SOT",
				Description: "Students report poor speeds; IT response pending.",
				Location:    "Blanton Hall 2F",
				Status:      model.StatusAvailable,
			},
		},
		{
			ID:    "2",
			Title: "Homecoming–Prep–1007",
			Start: "2025-10-08",
			ExtendedProps: model.ExtendedProps{
				Slug:        "Homecoming–Prep–1007",
				StoryType:   "PACKAGE",
				Description: "Preparation for homecoming event.",
				Location:    "Campus Green",
				Status:      model.StatusClaimed,
			},
		},
	}
}

// List は保存済みの全イベントを返す。
// ブロブが存在しない場合は既定のサンプルイベントを上書き禁止で書き込み、それを返す。
func (r *BlobEventsRepo) List(ctx context.Context) ([]model.Event, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.read(ctx)
	if errors.Is(err, blob.ErrNotFound) {
		return r.seed(ctx)
	}
	if err != nil {
		return nil, model.NewStorageUnavailableError("Failed to fetch events", err)
	}
	return decodeEvents(data)
}

// ReplaceAll はイベント一覧全体を上書き保存する。
func (r *BlobEventsRepo) ReplaceAll(ctx context.Context, events []model.Event) (WriteResult, error) {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return WriteResult{}, model.NewStorageUnavailableError("Failed to process events", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err = r.store.Write(ctx, r.config.Key, data, true)
	if err != nil {
		r.metrics.RecordBlobOperation(opWrite, outcomeError, time.Since(start))
		if r.config.Permissive {
			r.metrics.RecordDegradedWrite(opWrite)
			r.logger.Warn("events not persisted, continuing in degraded mode",
				slog.String("key", r.config.Key),
				slog.Int("count", len(events)),
				slog.String("error", err.Error()),
			)
			return WriteResult{Persisted: false, Note: NoteNotSaved}, nil
		}
		return WriteResult{}, model.NewStorageUnavailableError("Failed to save events", err)
	}
	r.metrics.RecordBlobOperation(opWrite, outcomeOK, time.Since(start))

	r.logger.Info("events saved",
		slog.String("key", r.config.Key),
		slog.Int("count", len(events)),
	)
	return WriteResult{Persisted: true}, nil
}

// seed は既定のサンプルイベントを初期データとして保存する。
// 並行リクエストが先に初期化していた場合は、その内容を読み直して返す。
func (r *BlobEventsRepo) seed(ctx context.Context) ([]model.Event, error) {
	defaults := normalizeAll(DefaultEvents())
	data, err := json.Marshal(defaults)
	if err != nil {
		return nil, model.NewStorageUnavailableError("Failed to initialize events", err)
	}

	start := time.Now()
	err = r.store.Write(ctx, r.config.Key, data, false)
	switch {
	case err == nil:
		r.metrics.RecordBlobOperation(opSeed, outcomeOK, time.Since(start))
		r.logger.Info("initialized events with sample data", slog.String("key", r.config.Key))
		return defaults, nil

	case errors.Is(err, blob.ErrAlreadyExists):
		r.metrics.RecordBlobOperation(opSeed, outcomeConflict, time.Since(start))
		stored, readErr := r.read(ctx)
		if readErr != nil {
			return nil, model.NewStorageUnavailableError("Failed to fetch events", readErr)
		}
		return decodeEvents(stored)

	default:
		r.metrics.RecordBlobOperation(opSeed, outcomeError, time.Since(start))
		if r.config.Permissive {
			r.metrics.RecordDegradedWrite(opSeed)
			r.logger.Warn("sample events not persisted, serving them without saving",
				slog.String("key", r.config.Key),
				slog.String("error", err.Error()),
			)
			return defaults, nil
		}
		return nil, model.NewStorageUnavailableError("Failed to initialize events", err)
	}
}

// read はブロブを読み込み、メトリクスを記録する。
func (r *BlobEventsRepo) read(ctx context.Context) ([]byte, error) {
	start := time.Now()
	data, err := r.store.Read(ctx, r.config.Key)

	outcome := outcomeOK
	switch {
	case errors.Is(err, blob.ErrNotFound):
		outcome = outcomeNotFound
	case err != nil:
		outcome = outcomeError
	}
	r.metrics.RecordBlobOperation(opRead, outcome, time.Since(start))
	return data, err
}

func (r *BlobEventsRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.Timeout)
}

// decodeEvents はブロブの内容をイベント一覧に変換し、欠けているtypeを補完する。
func decodeEvents(data []byte) ([]model.Event, error) {
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, model.NewStorageUnavailableError("Failed to fetch events",
			fmt.Errorf("stored events are not a JSON array: %w", err))
	}
	if events == nil {
		events = []model.Event{}
	}
	for i := range events {
		if events[i].ExtendedProps.Type == "" {
			events[i] = events[i].Normalize()
		}
	}
	return events, nil
}

func normalizeAll(events []model.Event) []model.Event {
	for i := range events {
		events[i] = events[i].Normalize()
	}
	return events
}

type nopStorageMetrics struct{}

func (nopStorageMetrics) RecordBlobOperation(string, string, time.Duration) {}
func (nopStorageMetrics) RecordDegradedWrite(string)                        {}
