package desk

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/assigndesk/internal/model"
)

// MaxDescriptionLength は説明文の最大文字数。
const MaxDescriptionLength = 500

// EventForm はイベント作成・編集フォームの入力値。
// 時刻は時・分・AM/PMの3項目に分かれており、組み立て時に24時間表記へ変換する。
type EventForm struct {
	Slug        string       `json:"slug"`
	StoryType   string       `json:"storyType"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Date        string       `json:"date"`
	StartHour   string       `json:"startHour"`
	StartMin    string       `json:"startMin"`
	StartAmPm   string       `json:"startAmpm"`
	EndHour     string       `json:"endHour"`
	EndMin      string       `json:"endMin"`
	EndAmPm     string       `json:"endAmpm"`
	Producer    string       `json:"producer"`
	Status      model.Status `json:"status"`
}

// clockTime は24時間表記の時刻。
type clockTime struct {
	hour, minute int
}

func (c clockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

func (c clockTime) before(o clockTime) bool {
	return c.hour*60+c.minute < o.hour*60+o.minute
}

// composedForm は検証済みのフォームから導出した保存用の値。
type composedForm struct {
	start    string
	end      string
	status   model.Status
	producer string
}

// compose はフォームを検証し、start/end文字列を組み立てる。
// 日付が空の場合は未スケジュールとして扱い、時刻の入力は無視する。
func (f EventForm) compose() (composedForm, error) {
	verr := &model.ValidationError{}
	var out composedForm

	if strings.TrimSpace(f.Slug) == "" {
		verr.Add("slug", "Slug is required")
	}
	if utf8.RuneCountInString(f.Description) > MaxDescriptionLength {
		verr.Add("description", fmt.Sprintf("Description must be %d characters or fewer", MaxDescriptionLength))
	}

	out.status = f.Status
	if out.status == "" {
		out.status = model.StatusAvailable
	}
	if !out.status.Valid() {
		verr.Add("status", fmt.Sprintf("Unknown status: %s", f.Status))
	}
	out.producer = strings.TrimSpace(f.Producer)
	if out.producer != "" && out.status == model.StatusAvailable {
		verr.Add("producer", "An available event cannot have a producer")
	}

	date := strings.TrimSpace(f.Date)
	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			verr.Add("date", "Date must be in YYYY-MM-DD format")
		} else {
			start, hasStart, msg := parseClock(f.StartHour, f.StartMin, f.StartAmPm)
			if msg != "" {
				verr.Add("startTime", "Start time "+msg)
			}
			end, hasEnd, msg := parseClock(f.EndHour, f.EndMin, f.EndAmPm)
			if msg != "" {
				verr.Add("endTime", "End time "+msg)
			}

			out.start = date
			if hasStart {
				out.start = date + "T" + start.String()
			}
			if hasEnd {
				switch {
				case !hasStart:
					verr.Add("endTime", "End time requires a start time")
				case end.before(start):
					verr.Add("endTime", "End time must not be before start time")
				default:
					out.end = date + "T" + end.String()
				}
			}
		}
	}

	if verr.HasErrors() {
		return composedForm{}, verr
	}
	return out, nil
}

// apply はフォームの値でイベントを上書きしたコピーを返す。IDは変更しない。
func (f EventForm) apply(e model.Event, c composedForm) model.Event {
	slug := strings.TrimSpace(f.Slug)
	e.Title = slug
	e.Start = c.start
	e.End = c.end
	e.ExtendedProps = model.ExtendedProps{
		Slug:        slug,
		StoryType:   strings.TrimSpace(f.StoryType),
		Description: f.Description,
		Location:    strings.TrimSpace(f.Location),
		Producer:    c.producer,
		Status:      c.status,
	}
	return e.Normalize()
}

// parseClock は時・分・AM/PMの3項目を24時間表記に変換する。
// 3項目すべて空の場合はpresent=false。一部のみの入力や範囲外の値はメッセージを返す。
func parseClock(hourStr, minStr, ampm string) (clockTime, bool, string) {
	hourStr = strings.TrimSpace(hourStr)
	minStr = strings.TrimSpace(minStr)
	ampm = strings.ToUpper(strings.TrimSpace(ampm))

	if hourStr == "" && minStr == "" && ampm == "" {
		return clockTime{}, false, ""
	}
	if hourStr == "" || minStr == "" || ampm == "" {
		return clockTime{}, false, "requires hour, minute and AM/PM"
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 1 || hour > 12 {
		return clockTime{}, false, "hour must be between 1 and 12"
	}
	minute, err := strconv.Atoi(minStr)
	if err != nil || len(minStr) > 2 || minute < 0 || minute > 59 {
		return clockTime{}, false, "minute must be between 00 and 59"
	}
	if ampm != "AM" && ampm != "PM" {
		return clockTime{}, false, "must be AM or PM"
	}

	hour %= 12
	if ampm == "PM" {
		hour += 12
	}
	return clockTime{hour: hour, minute: minute}, true, ""
}

// splitClock は24時間表記の時刻を時・分・AM/PMの3項目に分ける。
func splitClock(t time.Time) (hour, minute, ampm string) {
	h := t.Hour()
	ampm = "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return strconv.Itoa(h), fmt.Sprintf("%02d", t.Minute()), ampm
}
