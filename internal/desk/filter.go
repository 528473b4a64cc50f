package desk

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/assigndesk/internal/model"
)

// Mode は表示対象の候補集合を表す。
type Mode string

const (
	// ModeCalendar は保存済みイベントを表示する。
	ModeCalendar Mode = "calendar"
	// ModeFeed は外部フィードの候補イベントを表示する。
	ModeFeed Mode = "feed"
)

// Valid はモードが定義済みの値かどうかを返す。
func (m Mode) Valid() bool {
	return m == ModeCalendar || m == ModeFeed
}

// DateFilter は予定済みイベントの日付絞り込み条件。
type DateFilter string

const (
	DateFilterAll       DateFilter = "all"
	DateFilterToday     DateFilter = "today"
	DateFilterThisWeek  DateFilter = "thisWeek"
	DateFilterNextWeek  DateFilter = "nextWeek"
	DateFilterThisMonth DateFilter = "thisMonth"
	DateFilterNextMonth DateFilter = "nextMonth"
	DateFilterCustom    DateFilter = "custom"
)

// Valid は日付絞り込み条件が定義済みの値かどうかを返す。
func (f DateFilter) Valid() bool {
	switch f {
	case DateFilterAll, DateFilterToday, DateFilterThisWeek, DateFilterNextWeek,
		DateFilterThisMonth, DateFilterNextMonth, DateFilterCustom:
		return true
	default:
		return false
	}
}

// DateRange はYYYY-MM-DD形式の開始日と終了日（終了日を含む）。
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IsSet は開始日と終了日の両方が指定されているかを返す。
func (r DateRange) IsSet() bool {
	return r.Start != "" && r.End != ""
}

// Criteria は表示イベント算出の入力。
type Criteria struct {
	Mode       Mode
	Keyword    string
	DateFilter DateFilter
	Custom     DateRange
	Now        time.Time
	Location   *time.Location
	WeekStart  time.Weekday
}

// Visible は条件に合うイベントを表示順で返す。入力スライスは変更しない。
//
// カレンダーモードでは、未スケジュールのイベントは日付条件を受けず、
// 予定済みのイベントは今日より前の日を除外したうえで日付条件を適用する。
// キーワードはどちらのモードでもタイトル・説明・場所の大文字小文字を区別しない部分一致。
// フィードモードは日付条件を適用せず、フィードの並び順を保つ。
func Visible(events, feedEvents []model.Event, c Criteria) []model.Event {
	if c.Mode == ModeFeed {
		visible := make([]model.Event, 0, len(feedEvents))
		for _, e := range feedEvents {
			if matchesKeyword(e, c.Keyword) {
				visible = append(visible, e)
			}
		}
		return visible
	}

	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(c.Now.In(loc))
	rangeStart, rangeEnd, restricted := dateBounds(c, today, loc)

	type entry struct {
		event   model.Event
		start   time.Time
		sortKey string
	}
	var unscheduled, scheduled []entry

	for _, e := range events {
		if !matchesKeyword(e, c.Keyword) {
			continue
		}
		if IsUnscheduled(e) {
			unscheduled = append(unscheduled, entry{event: e, sortKey: unscheduledSortKey(e)})
			continue
		}

		startAt, err := model.ParseEventTime(e.Start, loc)
		if err != nil {
			continue
		}
		day := startOfDay(startAt.In(loc))
		if day.Before(today) {
			continue
		}
		if restricted && (day.Before(rangeStart) || !day.Before(rangeEnd)) {
			continue
		}
		scheduled = append(scheduled, entry{event: e, start: startAt})
	}

	sort.SliceStable(unscheduled, func(i, j int) bool {
		return unscheduled[i].sortKey < unscheduled[j].sortKey
	})
	sort.SliceStable(scheduled, func(i, j int) bool {
		return scheduled[i].start.Before(scheduled[j].start)
	})

	visible := make([]model.Event, 0, len(unscheduled)+len(scheduled))
	for _, en := range unscheduled {
		visible = append(visible, en.event)
	}
	for _, en := range scheduled {
		visible = append(visible, en.event)
	}
	return visible
}

// dateBounds は日付絞り込み条件を半開区間[start, end)に変換する。
// 制限なしの場合はrestricted=falseを返す。
func dateBounds(c Criteria, today time.Time, loc *time.Location) (start, end time.Time, restricted bool) {
	switch c.DateFilter {
	case DateFilterToday:
		return today, today.AddDate(0, 0, 1), true

	case DateFilterThisWeek, DateFilterNextWeek:
		offset := (int(today.Weekday()) - int(c.WeekStart) + 7) % 7
		weekStart := today.AddDate(0, 0, -offset)
		if c.DateFilter == DateFilterNextWeek {
			weekStart = weekStart.AddDate(0, 0, 7)
		}
		return weekStart, weekStart.AddDate(0, 0, 7), true

	case DateFilterThisMonth, DateFilterNextMonth:
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		if c.DateFilter == DateFilterNextMonth {
			monthStart = monthStart.AddDate(0, 1, 0)
		}
		return monthStart, monthStart.AddDate(0, 1, 0), true

	case DateFilterCustom:
		if !c.Custom.IsSet() {
			return time.Time{}, time.Time{}, false
		}
		from, errFrom := time.ParseInLocation(model.DateLayout, c.Custom.Start, loc)
		to, errTo := time.ParseInLocation(model.DateLayout, c.Custom.End, loc)
		if errFrom != nil || errTo != nil {
			return time.Time{}, time.Time{}, false
		}
		// 終了日を含めるため翌日0時を上限にする
		return from, to.AddDate(0, 0, 1), true

	default:
		return time.Time{}, time.Time{}, false
	}
}

func matchesKeyword(e model.Event, keyword string) bool {
	if keyword == "" {
		return true
	}
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(e.Title), kw) ||
		strings.Contains(strings.ToLower(e.ExtendedProps.Description), kw) ||
		strings.Contains(strings.ToLower(e.ExtendedProps.Location), kw)
}

func unscheduledSortKey(e model.Event) string {
	if e.ExtendedProps.Slug != "" {
		return strings.ToLower(e.ExtendedProps.Slug)
	}
	return strings.ToLower(e.Title)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
