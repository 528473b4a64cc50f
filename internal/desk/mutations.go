package desk

import (
	"strings"

	"github.com/hitoshi/assigndesk/internal/model"
)

// 以下の関数はイベント一覧に対する純粋な変更操作。
// 入力スライスは変更せず、新しいスライスと変更後のイベントを返す。

func indexOf(events []model.Event, id string) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func cloneEvents(events []model.Event) []model.Event {
	return append(make([]model.Event, 0, len(events)+1), events...)
}

// appendEvent はイベントを末尾に追加する。
func appendEvent(events []model.Event, e model.Event) []model.Event {
	return append(cloneEvents(events), e)
}

// replaceEvent は同じIDのイベントを置き換える。
func replaceEvent(events []model.Event, e model.Event) ([]model.Event, error) {
	i := indexOf(events, e.ID)
	if i < 0 {
		return nil, model.NewEventNotFoundError(e.ID)
	}
	updated := cloneEvents(events)
	updated[i] = e
	return updated, nil
}

// claimEvent はイベントに担当プロデューサーを設定し、CLAIMEDにする。
// 既に担当者がいる場合は上書きせずに拒否する。
func claimEvent(events []model.Event, id, producer string) ([]model.Event, model.Event, error) {
	producer = strings.TrimSpace(producer)
	if producer == "" {
		verr := &model.ValidationError{}
		verr.Add("producer", "Producer name is required")
		return nil, model.Event{}, verr
	}

	i := indexOf(events, id)
	if i < 0 {
		return nil, model.Event{}, model.NewEventNotFoundError(id)
	}
	if current := events[i].ExtendedProps.Producer; current != "" {
		return nil, model.Event{}, model.NewAlreadyClaimedError(id, current)
	}

	updated := cloneEvents(events)
	claimed := updated[i]
	claimed.ExtendedProps.Producer = producer
	claimed.ExtendedProps.Status = model.StatusClaimed
	updated[i] = claimed
	return updated, claimed, nil
}

// rescheduleEvent はドラッグ操作による日時変更。startと、そこから導出されるtype/allDayのみ変わる。
func rescheduleEvent(events []model.Event, id, start string) ([]model.Event, model.Event, error) {
	start = strings.TrimSpace(start)
	verr := &model.ValidationError{}
	if start == "" {
		verr.Add("start", "Start is required")
	} else if _, err := model.ParseEventTime(start, nil); err != nil {
		verr.Add("start", "Start must be YYYY-MM-DD or YYYY-MM-DDTHH:MM")
	}
	if verr.HasErrors() {
		return nil, model.Event{}, verr
	}

	i := indexOf(events, id)
	if i < 0 {
		return nil, model.Event{}, model.NewEventNotFoundError(id)
	}

	updated := cloneEvents(events)
	moved := updated[i]
	moved.Start = start
	moved = moved.Normalize()
	updated[i] = moved
	return updated, moved, nil
}

// deleteEvent はイベントを削除する。
func deleteEvent(events []model.Event, id string) ([]model.Event, error) {
	i := indexOf(events, id)
	if i < 0 {
		return nil, model.NewEventNotFoundError(id)
	}
	updated := make([]model.Event, 0, len(events)-1)
	updated = append(updated, events[:i]...)
	return append(updated, events[i+1:]...), nil
}
