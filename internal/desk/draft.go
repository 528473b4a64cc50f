package desk

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hitoshi/assigndesk/internal/model"
)

// FormatSlug はハイフン区切りのスラッグを単語ごとに先頭大文字の表示名にする。
// 例: "spring-career-fair" → "Spring Career Fair"
func FormatSlug(slug string) string {
	if slug == "" {
		return ""
	}
	// Caserは状態を持つため呼び出しごとに生成する
	caser := cases.Title(language.English)
	return strings.TrimSpace(caser.String(strings.ReplaceAll(slug, "-", " ")))
}

// DraftFromFeed はフィードの候補イベントから新規作成フォームの初期値を作る。
// 説明文の先頭にタイトルが重複している場合は取り除き、
// 開始・終了時刻はlocの現地時刻として12時間表記の3項目に分ける。
// フォームの日付は1つだけなので、開始日と異なる日に終わる終了時刻は引き継がない。
func DraftFromFeed(e model.Event, loc *time.Location) EventForm {
	if loc == nil {
		loc = time.Local
	}

	slug := e.ExtendedProps.Slug
	if slug == "" {
		slug = e.Title
	}

	// 英数字を含まないタイトル（例: "文化祭"）はスラッグが空になるのでタイトルを使う
	formatted := FormatSlug(slug)
	if formatted == "" {
		formatted = strings.TrimSpace(e.Title)
	}

	form := EventForm{
		Slug:        formatted,
		StoryType:   e.ExtendedProps.StoryType,
		Description: stripLeadingTitle(e.ExtendedProps.Description, e.Title),
		Location:    e.ExtendedProps.Location,
		Status:      model.StatusAvailable,
	}

	startAt, err := model.ParseEventTime(e.Start, loc)
	if err != nil {
		return form
	}
	startAt = startAt.In(loc)
	form.Date = startAt.Format(model.DateLayout)
	if model.HasTimeOfDay(e.Start) {
		form.StartHour, form.StartMin, form.StartAmPm = splitClock(startAt)

		if e.End != "" && model.HasTimeOfDay(e.End) {
			endAt, err := model.ParseEventTime(e.End, loc)
			if err == nil && endAt.In(loc).Format(model.DateLayout) == form.Date {
				form.EndHour, form.EndMin, form.EndAmPm = splitClock(endAt.In(loc))
			}
		}
	}
	return form
}

// stripLeadingTitle は説明文がタイトルで始まる場合（大文字小文字は区別しない）、
// その部分と直後の空白・区切り記号を取り除く。
func stripLeadingTitle(description, title string) string {
	if len(description) < len(title) || !strings.EqualFold(description[:len(title)], title) {
		return description
	}
	rest := strings.TrimSpace(description[len(title):])
	return strings.TrimLeft(rest, " \t\r\n,:;-")
}
