package desk

import (
	"fmt"
	"strings"

	"github.com/hitoshi/assigndesk/internal/model"
)

// ValidateEvents はクライアントから一括保存されるイベント配列を構造的に検証し、
// type/allDayを導出し直した配列を返す。
// フィールド名は "events[2].start" のように配列上の位置を含む。
func ValidateEvents(events []model.Event) ([]model.Event, error) {
	verr := &model.ValidationError{}
	seen := make(map[string]int, len(events))
	normalized := make([]model.Event, len(events))

	for i, e := range events {
		field := func(name string) string {
			return fmt.Sprintf("events[%d].%s", i, name)
		}

		if strings.TrimSpace(e.ID) == "" {
			verr.Add(field("id"), "ID is required")
		} else if first, dup := seen[e.ID]; dup {
			verr.Add(field("id"), fmt.Sprintf("Duplicate ID (same as events[%d])", first))
		} else {
			seen[e.ID] = i
		}

		if strings.TrimSpace(e.ExtendedProps.Slug) == "" {
			verr.Add(field("slug"), "Slug is required")
		}

		if e.ExtendedProps.Status == "" {
			e.ExtendedProps.Status = model.StatusAvailable
		}
		if !e.ExtendedProps.Status.Valid() {
			verr.Add(field("status"), fmt.Sprintf("Unknown status: %s", e.ExtendedProps.Status))
		}

		if e.Start != "" {
			startAt, err := model.ParseEventTime(e.Start, nil)
			if err != nil {
				verr.Add(field("start"), "Start must be an ISO-8601 date or datetime")
			} else if e.End != "" {
				endAt, err := model.ParseEventTime(e.End, nil)
				switch {
				case err != nil:
					verr.Add(field("end"), "End must be an ISO-8601 date or datetime")
				case endAt.Before(startAt):
					verr.Add(field("end"), "End must not be before start")
				}
			}
		}

		normalized[i] = e.Normalize()
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return normalized, nil
}
