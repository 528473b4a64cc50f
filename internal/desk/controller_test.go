package desk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/assigndesk/internal/model"
	"github.com/hitoshi/assigndesk/internal/repository"
)

// --- モック定義 ---

type mockEventsRepo struct {
	listFn       func(ctx context.Context) ([]model.Event, error)
	replaceAllFn func(ctx context.Context, events []model.Event) (repository.WriteResult, error)
	saved        [][]model.Event
}

func (m *mockEventsRepo) List(ctx context.Context) ([]model.Event, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockEventsRepo) ReplaceAll(ctx context.Context, events []model.Event) (repository.WriteResult, error) {
	m.saved = append(m.saved, events)
	if m.replaceAllFn != nil {
		return m.replaceAllFn(ctx, events)
	}
	return repository.WriteResult{Persisted: true}, nil
}

// withEvents はList呼び出しごとに同じ内容のコピーを返すリポジトリを作る。
func withEvents(events ...model.Event) *mockEventsRepo {
	return &mockEventsRepo{
		listFn: func(ctx context.Context) ([]model.Event, error) {
			return append([]model.Event(nil), events...), nil
		},
	}
}

type mockFeedSource struct {
	fetchFn func(ctx context.Context, now time.Time) ([]model.Event, error)
}

func (m *mockFeedSource) FetchUpcoming(ctx context.Context, now time.Time) ([]model.Event, error) {
	return m.fetchFn(ctx, now)
}

type mockMutationMetrics struct {
	recorded []string
}

func (m *mockMutationMetrics) RecordMutation(action, outcome string) {
	m.recorded = append(m.recorded, action+":"+outcome)
}

var controllerNow = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func newTestController(repo *mockEventsRepo, feed FeedSource, metrics *mockMutationMetrics) *Controller {
	var m MutationMetrics
	if metrics != nil {
		m = metrics
	}
	seq := 0
	return NewController(repo, feed, ControllerConfig{
		Location: time.UTC,
		Now:      func() time.Time { return controllerNow },
		NewID: func() string {
			seq++
			return fmt.Sprintf("new-%d", seq)
		},
	}, m, nil)
}

func availableEvent(id, slug, start string) model.Event {
	return model.Event{
		ID:    id,
		Title: slug,
		Start: start,
		ExtendedProps: model.ExtendedProps{
			Slug:      slug,
			StoryType: "NEWS",
			Status:    model.StatusAvailable,
		},
	}.Normalize()
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestController_LoadAndPersist(t *testing.T) {
	events := []model.Event{availableEvent("1", "wifi", "2025-10-01")}
	repo := withEvents(events...)
	c := newTestController(repo, nil, nil)

	got, err := c.LoadEvents(context.Background())
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("LoadEvents mismatch (-want +got):\n%s", diff)
	}

	result, err := c.Persist(context.Background(), got)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !result.Persisted {
		t.Error("Persisted = false")
	}
	if diff := cmp.Diff(events, repo.saved[0]); diff != "" {
		t.Errorf("persisted mismatch (-want +got):\n%s", diff)
	}
}

func TestController_ImportFeedUsesClock(t *testing.T) {
	var gotNow time.Time
	feed := &mockFeedSource{fetchFn: func(ctx context.Context, now time.Time) ([]model.Event, error) {
		gotNow = now
		return []model.Event{{ID: "engage-1"}}, nil
	}}
	c := newTestController(&mockEventsRepo{}, feed, nil)

	got, err := c.ImportFeed(context.Background())
	if err != nil {
		t.Fatalf("ImportFeed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "engage-1" {
		t.Errorf("ImportFeed = %+v", got)
	}
	if !gotNow.Equal(controllerNow) {
		t.Errorf("feed now = %v, want %v", gotNow, controllerNow)
	}
}

func TestController_ImportFeedPropagatesError(t *testing.T) {
	feedErr := model.NewFeedUnavailableError(errors.New("request failed with status code 502"))
	feed := &mockFeedSource{fetchFn: func(ctx context.Context, now time.Time) ([]model.Event, error) {
		return nil, feedErr
	}}
	c := newTestController(&mockEventsRepo{}, feed, nil)

	_, err := c.ImportFeed(context.Background())
	assertAPIErrorCode(t, err, model.ErrCodeFeedUnavailable)
}

func TestController_VisibleEventsUsesClock(t *testing.T) {
	c := newTestController(&mockEventsRepo{}, nil, nil)
	events := []model.Event{
		availableEvent("past", "past", "2025-09-14"),
		availableEvent("today", "today", "2025-09-15"),
	}

	got := c.VisibleEvents(events, nil, NewViewState())

	if diff := cmp.Diff([]string{"today"}, ids(got)); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestController_ClaimScenario(t *testing.T) {
	other := availableEvent("2", "homecoming", "2025-10-08")
	other.ExtendedProps.Producer = "Alex"
	other.ExtendedProps.Status = model.StatusClaimed
	repo := withEvents(availableEvent("1", "wifi", "2025-10-01"), other)
	metrics := &mockMutationMetrics{}
	c := newTestController(repo, nil, metrics)

	result, err := c.Claim(context.Background(), "1", "Jordan")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if result.Event.ExtendedProps.Status != model.StatusClaimed {
		t.Errorf("Status = %q, want CLAIMED", result.Event.ExtendedProps.Status)
	}
	if result.Event.ExtendedProps.Producer != "Jordan" {
		t.Errorf("Producer = %q, want Jordan", result.Event.ExtendedProps.Producer)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("ReplaceAll called %d times, want 1", len(repo.saved))
	}
	claimed := availableEvent("1", "wifi", "2025-10-01")
	claimed.ExtendedProps.Producer = "Jordan"
	claimed.ExtendedProps.Status = model.StatusClaimed
	if diff := cmp.Diff([]model.Event{claimed, other}, repo.saved[0]); diff != "" {
		t.Errorf("persisted array mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"claim:ok"}, metrics.recorded); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestController_ClaimRejections(t *testing.T) {
	claimed := availableEvent("2", "homecoming", "2025-10-08")
	claimed.ExtendedProps.Producer = "Alex"
	claimed.ExtendedProps.Status = model.StatusClaimed

	t.Run("担当者がいるイベントは上書きしない", func(t *testing.T) {
		repo := withEvents(claimed)
		metrics := &mockMutationMetrics{}
		c := newTestController(repo, nil, metrics)

		_, err := c.Claim(context.Background(), "2", "Jordan")
		assertAPIErrorCode(t, err, model.ErrCodeAlreadyClaimed)
		if len(repo.saved) != 0 {
			t.Error("ReplaceAll must not be called")
		}
		if diff := cmp.Diff([]string{"claim:rejected"}, metrics.recorded); diff != "" {
			t.Errorf("metrics mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("空の担当者名", func(t *testing.T) {
		repo := withEvents(availableEvent("1", "wifi", "2025-10-01"))
		c := newTestController(repo, nil, nil)

		_, err := c.Claim(context.Background(), "1", "   ")
		var verr *model.ValidationError
		if !errors.As(err, &verr) || verr.Fields["producer"] == "" {
			t.Errorf("error = %v, want producer validation error", err)
		}
		if len(repo.saved) != 0 {
			t.Error("ReplaceAll must not be called")
		}
	})

	t.Run("存在しないID", func(t *testing.T) {
		c := newTestController(withEvents(), nil, nil)
		_, err := c.Claim(context.Background(), "missing", "Jordan")
		assertAPIErrorCode(t, err, model.ErrCodeEventNotFound)
	})
}

func TestController_Create(t *testing.T) {
	existing := availableEvent("1", "wifi", "2025-10-01")
	repo := withEvents(existing)
	c := newTestController(repo, nil, nil)

	result, err := c.Create(context.Background(), EventForm{
		Slug:      "spring-fair",
		StoryType: "VIDEO",
		Date:      "2025-10-05",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := model.Event{
		ID:     "new-1",
		Title:  "spring-fair",
		Start:  "2025-10-05",
		AllDay: true,
		ExtendedProps: model.ExtendedProps{
			Slug:      "spring-fair",
			StoryType: "VIDEO",
			Status:    model.StatusAvailable,
			Type:      model.EventTypeScheduled,
		},
	}
	if diff := cmp.Diff(want, result.Event); diff != "" {
		t.Errorf("created event mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Event{existing, want}, repo.saved[0]); diff != "" {
		t.Errorf("persisted array mismatch (-want +got):\n%s", diff)
	}
}

func TestController_CreateValidationSkipsStorage(t *testing.T) {
	repo := withEvents()
	metrics := &mockMutationMetrics{}
	c := newTestController(repo, nil, metrics)

	_, err := c.Create(context.Background(), EventForm{})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *model.ValidationError", err)
	}
	if len(repo.saved) != 0 {
		t.Error("ReplaceAll must not be called")
	}
	if diff := cmp.Diff([]string{"create:invalid"}, metrics.recorded); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestController_CreateDegradedWrite(t *testing.T) {
	repo := withEvents()
	repo.replaceAllFn = func(ctx context.Context, events []model.Event) (repository.WriteResult, error) {
		return repository.WriteResult{Persisted: false, Note: repository.NoteNotSaved}, nil
	}
	metrics := &mockMutationMetrics{}
	c := newTestController(repo, nil, metrics)

	result, err := c.Create(context.Background(), EventForm{Slug: "backlog"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Write.Persisted || result.Write.Note != repository.NoteNotSaved {
		t.Errorf("Write = %+v, want degraded result", result.Write)
	}
	if diff := cmp.Diff([]string{"create:degraded"}, metrics.recorded); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestController_StorageErrors(t *testing.T) {
	storageErr := model.NewStorageUnavailableError("Failed to fetch events", errors.New("boom"))

	t.Run("読み込み失敗", func(t *testing.T) {
		repo := &mockEventsRepo{listFn: func(ctx context.Context) ([]model.Event, error) {
			return nil, storageErr
		}}
		c := newTestController(repo, nil, nil)

		_, err := c.Delete(context.Background(), "1")
		assertAPIErrorCode(t, err, model.ErrCodeStorageUnavailable)
		if len(repo.saved) != 0 {
			t.Error("ReplaceAll must not be called")
		}
	})

	t.Run("書き込み失敗", func(t *testing.T) {
		repo := withEvents(availableEvent("1", "wifi", "2025-10-01"))
		repo.replaceAllFn = func(ctx context.Context, events []model.Event) (repository.WriteResult, error) {
			return repository.WriteResult{}, model.NewStorageUnavailableError("Failed to save events", errors.New("boom"))
		}
		metrics := &mockMutationMetrics{}
		c := newTestController(repo, nil, metrics)

		_, err := c.Claim(context.Background(), "1", "Jordan")
		assertAPIErrorCode(t, err, model.ErrCodeStorageUnavailable)
		if diff := cmp.Diff([]string{"claim:error"}, metrics.recorded); diff != "" {
			t.Errorf("metrics mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestController_Update(t *testing.T) {
	first := availableEvent("1", "wifi", "2025-10-01")
	second := availableEvent("2", "homecoming", "2025-10-08")
	repo := withEvents(first, second)
	c := newTestController(repo, nil, nil)

	result, err := c.Update(context.Background(), "2", EventForm{
		Slug:     "homecoming-parade",
		Producer: "Sam",
		Status:   model.StatusInProgress,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := model.Event{
		ID:    "2",
		Title: "homecoming-parade",
		ExtendedProps: model.ExtendedProps{
			Slug:     "homecoming-parade",
			Producer: "Sam",
			Status:   model.StatusInProgress,
			Type:     model.EventTypeUnscheduled,
		},
	}
	if diff := cmp.Diff([]model.Event{first, want}, repo.saved[0]); diff != "" {
		t.Errorf("persisted array mismatch (-want +got):\n%s", diff)
	}
	if result.Event.ID != "2" {
		t.Errorf("ID = %q, want 2", result.Event.ID)
	}

	_, err = c.Update(context.Background(), "missing", EventForm{Slug: "x"})
	assertAPIErrorCode(t, err, model.ErrCodeEventNotFound)
}

func TestController_Reschedule(t *testing.T) {
	backlog := model.Event{
		ID:    "1",
		Title: "backlog",
		ExtendedProps: model.ExtendedProps{
			Slug:        "backlog",
			Description: "keep me",
			Producer:    "Jordan",
			Status:      model.StatusClaimed,
		},
	}.Normalize()
	repo := withEvents(backlog)
	c := newTestController(repo, nil, nil)

	result, err := c.Reschedule(context.Background(), "1", "2025-10-02T14:00")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	want := backlog
	want.Start = "2025-10-02T14:00"
	want.ExtendedProps.Type = model.EventTypeScheduled
	if diff := cmp.Diff(want, result.Event); diff != "" {
		t.Errorf("rescheduled event mismatch (-want +got):\n%s", diff)
	}

	allDay, err := c.Reschedule(context.Background(), "1", "2025-10-03")
	if err != nil {
		t.Fatalf("Reschedule all-day: %v", err)
	}
	if !allDay.Event.AllDay {
		t.Error("date-only start should be all-day")
	}

	for _, bad := range []string{"", "tomorrow"} {
		_, err := c.Reschedule(context.Background(), "1", bad)
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Reschedule(%q) error = %v, want validation error", bad, err)
		}
	}

	_, err = c.Reschedule(context.Background(), "missing", "2025-10-02")
	assertAPIErrorCode(t, err, model.ErrCodeEventNotFound)
}

func TestController_Delete(t *testing.T) {
	first := availableEvent("1", "wifi", "2025-10-01")
	second := availableEvent("2", "homecoming", "2025-10-08")
	repo := withEvents(first, second)
	c := newTestController(repo, nil, nil)

	if _, err := c.Delete(context.Background(), "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if diff := cmp.Diff([]model.Event{second}, repo.saved[0]); diff != "" {
		t.Errorf("persisted array mismatch (-want +got):\n%s", diff)
	}

	_, err := c.Delete(context.Background(), "missing")
	assertAPIErrorCode(t, err, model.ErrCodeEventNotFound)
}

func TestController_ImportItem(t *testing.T) {
	repo := withEvents()
	c := newTestController(repo, nil, nil)

	feedEvent := model.Event{
		ID:    "engage-42",
		Title: "Open Mic Night",
		Start: "2025-10-02T22:00:00.000Z",
		ExtendedProps: model.ExtendedProps{
			Slug:        "open-mic-night",
			StoryType:   "EVENT",
			Description: "Open Mic Night: bring your poems",
			Location:    "Cafe",
			Status:      model.StatusAvailable,
		},
	}.Normalize()

	result, err := c.ImportItem(context.Background(), feedEvent)
	if err != nil {
		t.Fatalf("ImportItem: %v", err)
	}

	want := model.Event{
		ID:    "new-1",
		Title: "Open Mic Night",
		Start: "2025-10-02T22:00",
		ExtendedProps: model.ExtendedProps{
			Slug:        "Open Mic Night",
			StoryType:   "EVENT",
			Description: "bring your poems",
			Location:    "Cafe",
			Status:      model.StatusAvailable,
			Type:        model.EventTypeScheduled,
		},
	}
	if diff := cmp.Diff(want, result.Event); diff != "" {
		t.Errorf("imported event mismatch (-want +got):\n%s", diff)
	}
	if result.Event.IsFeedItem() {
		t.Error("imported event must not keep the feed id prefix")
	}

	_, err = c.ImportItem(context.Background(), availableEvent("1", "wifi", "2025-10-01"))
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error = %v, want validation error for non-feed event", err)
	}
}

func TestController_ImportItem_TitleWithoutASCII(t *testing.T) {
	repo := withEvents()
	c := newTestController(repo, nil, nil)

	feedEvent := model.Event{
		ID:    "engage-77",
		Title: "文化祭",
		Start: "2025-10-03T15:00:00.000Z",
		ExtendedProps: model.ExtendedProps{
			Slug:      "-",
			StoryType: "EVENT",
			Status:    model.StatusAvailable,
		},
	}.Normalize()

	result, err := c.ImportItem(context.Background(), feedEvent)
	if err != nil {
		t.Fatalf("ImportItem: %v", err)
	}
	if result.Event.ExtendedProps.Slug != "文化祭" {
		t.Errorf("Slug = %q, want %q", result.Event.ExtendedProps.Slug, "文化祭")
	}
	if result.Event.Title != "文化祭" {
		t.Errorf("Title = %q, want %q", result.Event.Title, "文化祭")
	}
}
