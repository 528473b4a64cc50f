package desk

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/assigndesk/internal/model"
)

func TestValidateEvents_NormalizesDerivedFields(t *testing.T) {
	in := []model.Event{
		{ID: "1", Title: "wifi", Start: "2025-10-01", ExtendedProps: model.ExtendedProps{Slug: "wifi", Type: model.EventTypeUnscheduled}},
		{ID: "2", Title: "backlog", End: "2025-10-02", AllDay: true, ExtendedProps: model.ExtendedProps{Slug: "backlog", Status: model.StatusClaimed, Producer: "Jordan"}},
	}

	got, err := ValidateEvents(in)
	if err != nil {
		t.Fatalf("ValidateEvents: %v", err)
	}

	want := []model.Event{
		{ID: "1", Title: "wifi", Start: "2025-10-01", AllDay: true, ExtendedProps: model.ExtendedProps{Slug: "wifi", Status: model.StatusAvailable, Type: model.EventTypeScheduled}},
		{ID: "2", Title: "backlog", ExtendedProps: model.ExtendedProps{Slug: "backlog", Status: model.StatusClaimed, Producer: "Jordan", Type: model.EventTypeUnscheduled}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalized mismatch (-want +got):\n%s", diff)
	}
	if in[0].ExtendedProps.Type != model.EventTypeUnscheduled {
		t.Error("input slice was mutated")
	}
}

func TestValidateEvents_TypeMatchesStart(t *testing.T) {
	got, err := ValidateEvents([]model.Event{
		{ID: "a", ExtendedProps: model.ExtendedProps{Slug: "a", Type: model.EventTypeScheduled}},
		{ID: "b", Start: "2025-10-01T09:00", ExtendedProps: model.ExtendedProps{Slug: "b"}},
	})
	if err != nil {
		t.Fatalf("ValidateEvents: %v", err)
	}
	for _, e := range got {
		if (e.ExtendedProps.Type == model.EventTypeUnscheduled) != (e.Start == "") {
			t.Errorf("event %s: type=%q start=%q", e.ID, e.ExtendedProps.Type, e.Start)
		}
	}
}

func TestValidateEvents_Errors(t *testing.T) {
	valid := func(id string) model.Event {
		return model.Event{ID: id, Start: "2025-10-01T09:00", ExtendedProps: model.ExtendedProps{Slug: "s"}}
	}

	tests := []struct {
		name   string
		events []model.Event
		field  string
	}{
		{"IDが空", []model.Event{{ExtendedProps: model.ExtendedProps{Slug: "s"}}}, "events[0].id"},
		{"IDが重複", []model.Event{valid("x"), valid("x")}, "events[1].id"},
		{"slugが空", []model.Event{{ID: "1"}}, "events[0].slug"},
		{"未知のステータス", []model.Event{{ID: "1", ExtendedProps: model.ExtendedProps{Slug: "s", Status: "DONE"}}}, "events[0].status"},
		{"startが解釈できない", []model.Event{{ID: "1", Start: "soon", ExtendedProps: model.ExtendedProps{Slug: "s"}}}, "events[0].start"},
		{"endが解釈できない", []model.Event{func() model.Event { e := valid("1"); e.End = "later"; return e }()}, "events[0].end"},
		{"endがstartより前", []model.Event{func() model.Event { e := valid("1"); e.End = "2025-10-01T08:00"; return e }()}, "events[0].end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateEvents(tt.events)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *model.ValidationError", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, want key %q", verr.Fields, tt.field)
			}
		})
	}
}

func TestValidateEvents_Empty(t *testing.T) {
	got, err := ValidateEvents([]model.Event{})
	if err != nil {
		t.Fatalf("ValidateEvents: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}
