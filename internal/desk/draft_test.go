package desk

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/assigndesk/internal/model"
)

func TestFormatSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"spring-career-fair", "Spring Career Fair"},
		{"open-mic-", "Open Mic"},
		{"wifi", "Wifi"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatSlug(tt.in); got != tt.want {
			t.Errorf("FormatSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDraftFromFeed(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	feedEvent := model.Event{
		ID:    "engage-123",
		Title: "Spring Career Fair",
		Start: "2025-10-02T13:00:00.000Z",
		End:   "2025-10-02T15:30:00.000Z",
		ExtendedProps: model.ExtendedProps{
			Slug:        "spring-career-fair",
			StoryType:   "EVENT",
			Description: "Spring Career Fair - Meet employers and recruiters",
			Location:    "Student Center",
			Status:      model.StatusAvailable,
		},
	}.Normalize()

	got := DraftFromFeed(feedEvent, loc)

	want := EventForm{
		Slug:        "Spring Career Fair",
		StoryType:   "EVENT",
		Description: "Meet employers and recruiters",
		Location:    "Student Center",
		Date:        "2025-10-02",
		StartHour:   "9",
		StartMin:    "00",
		StartAmPm:   "AM",
		EndHour:     "11",
		EndMin:      "30",
		EndAmPm:     "AM",
		Status:      model.StatusAvailable,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	if _, err := got.compose(); err != nil {
		t.Errorf("draft should pass validation: %v", err)
	}
}

func TestDraftFromFeed_TitleWithoutASCIIFallsBackToTitle(t *testing.T) {
	tests := []struct {
		name string
		slug string
	}{
		{"記号のみのスラッグ", "-"},
		{"スラッグなし", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feedEvent := model.Event{
				ID:            "engage-77",
				Title:         " 文化祭 ",
				ExtendedProps: model.ExtendedProps{Slug: tt.slug, StoryType: "EVENT"},
			}
			got := DraftFromFeed(feedEvent, nil)
			if got.Slug != "文化祭" {
				t.Errorf("Slug = %q, want %q", got.Slug, "文化祭")
			}
		})
	}
}

func TestDraftFromFeed_DropsEndOnAnotherDay(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	feedEvent := model.Event{
		ID:    "engage-late",
		Title: "Late Show",
		// 22:00〜翌1:00（ニューヨーク時間）
		Start:         "2025-10-03T02:00:00.000Z",
		End:           "2025-10-03T05:00:00.000Z",
		ExtendedProps: model.ExtendedProps{Slug: "late-show"},
	}

	got := DraftFromFeed(feedEvent, loc)

	if got.Date != "2025-10-02" {
		t.Errorf("Date = %q, want local date 2025-10-02", got.Date)
	}
	if got.StartHour != "10" || got.StartAmPm != "PM" {
		t.Errorf("start = %s %s, want 10 PM", got.StartHour, got.StartAmPm)
	}
	if got.EndHour != "" || got.EndMin != "" || got.EndAmPm != "" {
		t.Errorf("end fields = %q %q %q, want empty", got.EndHour, got.EndMin, got.EndAmPm)
	}
}

func TestDraftFromFeed_KeepsDescriptionWithoutLeadingTitle(t *testing.T) {
	feedEvent := model.Event{
		ID:            "engage-x",
		Title:         "Open Mic",
		ExtendedProps: model.ExtendedProps{Description: "Bring your poems"},
	}

	got := DraftFromFeed(feedEvent, nil)

	if got.Description != "Bring your poems" {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Slug != "Open Mic" {
		t.Errorf("Slug = %q, want title-cased title fallback", got.Slug)
	}
	if got.Date != "" || got.StartHour != "" {
		t.Errorf("unscheduled feed event should leave date/time empty: %+v", got)
	}
}

func TestStripLeadingTitle(t *testing.T) {
	tests := []struct {
		desc, title, want string
	}{
		{"Open Mic: poems and prose", "open mic", "poems and prose"},
		{"Open Mic", "Open Mic", ""},
		{"Short", "A much longer title", "Short"},
		{"Talk about Open Mic", "Open Mic", "Talk about Open Mic"},
	}
	for _, tt := range tests {
		if got := stripLeadingTitle(tt.desc, tt.title); got != tt.want {
			t.Errorf("stripLeadingTitle(%q, %q) = %q, want %q", tt.desc, tt.title, got, tt.want)
		}
	}
}
