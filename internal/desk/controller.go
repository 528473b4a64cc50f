package desk

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/assigndesk/internal/model"
	"github.com/hitoshi/assigndesk/internal/repository"
)

// FeedSource は外部フィードから候補イベントを取得するインターフェース。
// feed.Serviceを抽象化してテスタビリティを向上させる。
type FeedSource interface {
	FetchUpcoming(ctx context.Context, now time.Time) ([]model.Event, error)
}

// MutationMetrics はユーザー操作のメトリクス記録インターフェース。
type MutationMetrics interface {
	RecordMutation(action, outcome string)
}

// ユーザー操作のメトリクスラベル
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionClaim      = "claim"
	ActionReschedule = "reschedule"
	ActionDelete     = "delete"
	ActionImport     = "import"
)

// ControllerConfig はControllerの設定を保持する。
type ControllerConfig struct {
	Location  *time.Location // 日付判定に使うタイムゾーン。nilの場合はtime.Local
	WeekStart time.Weekday   // 週の開始曜日

	// Now は現在時刻を返す。nilの場合はtime.Now
	Now func() time.Time
	// NewID は新規イベントのIDを生成する。nilの場合はUUID
	NewID func() string
}

// MutationResult は変更操作の結果。
// Writeは保存結果で、寛容モードで保存できなかった場合はPersisted=falseになる。
type MutationResult struct {
	Event model.Event
	Write repository.WriteResult
}

// Controller はアサインメントデスクの操作を統括する。
// すべての変更は 全件読み込み → メモリ上で変更 → 全件書き戻し の順で行い、
// 排他制御は行わない（後勝ち）。
type Controller struct {
	repo      repository.EventsRepository
	feed      FeedSource
	metrics   MutationMetrics
	logger    *slog.Logger
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time
	newID     func() string
}

// NewController はControllerの新しいインスタンスを生成する。
// metricsとloggerはnilでもよい。
func NewController(
	repo repository.EventsRepository,
	feed FeedSource,
	config ControllerConfig,
	metrics MutationMetrics,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		repo:      repo,
		feed:      feed,
		metrics:   metrics,
		logger:    logger,
		loc:       config.Location,
		weekStart: config.WeekStart,
		now:       config.Now,
		newID:     config.NewID,
	}
	if c.metrics == nil {
		c.metrics = nopMutationMetrics{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// LoadEvents は保存済みの全イベントを返す。
func (c *Controller) LoadEvents(ctx context.Context) ([]model.Event, error) {
	return c.repo.List(ctx)
}

// Persist はイベント一覧全体を保存する。
func (c *Controller) Persist(ctx context.Context, events []model.Event) (repository.WriteResult, error) {
	return c.repo.ReplaceAll(ctx, events)
}

// ImportFeed は現在時刻を基準に外部フィードの候補イベントを取得する。
func (c *Controller) ImportFeed(ctx context.Context) ([]model.Event, error) {
	return c.feed.FetchUpcoming(ctx, c.now())
}

// VisibleEvents は表示状態に応じたイベントを表示順で返す。
func (c *Controller) VisibleEvents(events, feedEvents []model.Event, state ViewState) []model.Event {
	return Visible(events, feedEvents, state.Criteria(c.now(), c.loc, c.weekStart))
}

// Create はフォームから新しいイベントを作成して保存する。
func (c *Controller) Create(ctx context.Context, form EventForm) (MutationResult, error) {
	composed, err := form.compose()
	if err != nil {
		c.metrics.RecordMutation(ActionCreate, "invalid")
		return MutationResult{}, err
	}

	return c.mutate(ctx, ActionCreate, func(events []model.Event) ([]model.Event, model.Event, error) {
		created := form.apply(model.Event{ID: c.newID()}, composed)
		return appendEvent(events, created), created, nil
	})
}

// Update はフォームの値でイベントの全フィールドを上書きする。
func (c *Controller) Update(ctx context.Context, id string, form EventForm) (MutationResult, error) {
	composed, err := form.compose()
	if err != nil {
		c.metrics.RecordMutation(ActionUpdate, "invalid")
		return MutationResult{}, err
	}

	return c.mutate(ctx, ActionUpdate, func(events []model.Event) ([]model.Event, model.Event, error) {
		edited := form.apply(model.Event{ID: id}, composed)
		updated, err := replaceEvent(events, edited)
		return updated, edited, err
	})
}

// Claim はAVAILABLEなイベントに担当プロデューサーを設定する。
// 既に担当者がいるイベントはAlreadyClaimedエラーで拒否する。
func (c *Controller) Claim(ctx context.Context, id, producer string) (MutationResult, error) {
	return c.mutate(ctx, ActionClaim, func(events []model.Event) ([]model.Event, model.Event, error) {
		return claimEvent(events, id, producer)
	})
}

// Reschedule はイベントの開始日時のみを変更する。
func (c *Controller) Reschedule(ctx context.Context, id, start string) (MutationResult, error) {
	return c.mutate(ctx, ActionReschedule, func(events []model.Event) ([]model.Event, model.Event, error) {
		return rescheduleEvent(events, id, start)
	})
}

// Delete はイベントを削除する。
func (c *Controller) Delete(ctx context.Context, id string) (repository.WriteResult, error) {
	result, err := c.mutate(ctx, ActionDelete, func(events []model.Event) ([]model.Event, model.Event, error) {
		updated, err := deleteEvent(events, id)
		return updated, model.Event{ID: id}, err
	})
	return result.Write, err
}

// DraftFromFeed はフィードの候補イベントから新規作成フォームの初期値を作る。
func (c *Controller) DraftFromFeed(feedEvent model.Event) EventForm {
	return DraftFromFeed(feedEvent, c.loc)
}

// ImportItem はフィードの候補イベントを通常のイベントとして取り込む。
// 新しいIDが割り当てられ、以降は通常のイベントとして編集できる。
func (c *Controller) ImportItem(ctx context.Context, feedEvent model.Event) (MutationResult, error) {
	if !feedEvent.IsFeedItem() {
		verr := &model.ValidationError{}
		verr.Add("id", "Only feed items can be imported")
		c.metrics.RecordMutation(ActionImport, "invalid")
		return MutationResult{}, verr
	}

	form := c.DraftFromFeed(feedEvent)
	composed, err := form.compose()
	if err != nil {
		c.metrics.RecordMutation(ActionImport, "invalid")
		return MutationResult{}, err
	}

	return c.mutate(ctx, ActionImport, func(events []model.Event) ([]model.Event, model.Event, error) {
		created := form.apply(model.Event{ID: c.newID()}, composed)
		return appendEvent(events, created), created, nil
	})
}

// mutate は全件読み込み → 変更 → 全件書き戻しを行う。
func (c *Controller) mutate(
	ctx context.Context,
	action string,
	change func(events []model.Event) ([]model.Event, model.Event, error),
) (MutationResult, error) {
	events, err := c.repo.List(ctx)
	if err != nil {
		c.metrics.RecordMutation(action, "error")
		return MutationResult{}, err
	}

	updated, changed, err := change(events)
	if err != nil {
		c.metrics.RecordMutation(action, "rejected")
		return MutationResult{}, err
	}

	write, err := c.repo.ReplaceAll(ctx, updated)
	if err != nil {
		c.metrics.RecordMutation(action, "error")
		return MutationResult{}, err
	}

	outcome := "ok"
	if !write.Persisted {
		outcome = "degraded"
	}
	c.metrics.RecordMutation(action, outcome)
	c.logger.Info("event mutated",
		slog.String("action", action),
		slog.String("event_id", changed.ID),
		slog.Int("total", len(updated)),
		slog.Bool("persisted", write.Persisted),
	)
	return MutationResult{Event: changed, Write: write}, nil
}

type nopMutationMetrics struct{}

func (nopMutationMetrics) RecordMutation(string, string) {}
