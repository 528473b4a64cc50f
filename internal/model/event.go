// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"
)

// Event はアサインメントデスクの取材予定（ニュースパッケージ）を表す。
// 永続化される唯一のエンティティで、JSON配列としてまとめて保存される。
type Event struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Start         string        `json:"start,omitempty"` // 空の場合は未スケジュール
	End           string        `json:"end,omitempty"`
	AllDay        bool          `json:"allDay"`
	ExtendedProps ExtendedProps `json:"extendedProps"`
}

// ExtendedProps はイベントの付随属性を表す。
type ExtendedProps struct {
	Slug        string    `json:"slug"`
	StoryType   string    `json:"storyType"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Producer    string    `json:"producer,omitempty"`
	Status      Status    `json:"status"`
	Type        EventType `json:"type,omitempty"`
}

// Status はイベントの進行状態を表す。
type Status string

const (
	// StatusAvailable は未担当の状態。
	StatusAvailable Status = "AVAILABLE"
	// StatusClaimed はプロデューサーが担当を宣言した状態。
	StatusClaimed Status = "CLAIMED"
	// StatusInProgress は取材中の状態。
	StatusInProgress Status = "IN_PROGRESS"
	// StatusApproved は承認済みの状態。
	StatusApproved Status = "APPROVED"
	// StatusCompleted は完了した状態。
	StatusCompleted Status = "COMPLETED"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusInProgress, StatusApproved, StatusCompleted:
		return true
	default:
		return false
	}
}

// EventType は開始日時の有無から導出されるイベント種別。
type EventType string

const (
	// EventTypeScheduled は開始日時を持つイベント。
	EventTypeScheduled EventType = "scheduled"
	// EventTypeUnscheduled は開始日時を持たないイベント。
	EventTypeUnscheduled EventType = "unscheduled"
)

// FeedEventIDPrefix は外部フィード由来の候補イベントIDに付与されるプレフィックス。
const FeedEventIDPrefix = "engage-"

// IsFeedItem はイベントが外部フィード由来の未取り込み候補かどうかを返す。
func (e Event) IsFeedItem() bool {
	return strings.HasPrefix(e.ID, FeedEventIDPrefix)
}

// Normalize はstartの有無からtypeとallDayを導出して設定したコピーを返す。
// 古いデータでtypeが欠けている場合の補完にも使う。
func (e Event) Normalize() Event {
	if e.Start == "" {
		e.ExtendedProps.Type = EventTypeUnscheduled
		e.AllDay = false
		e.End = ""
		return e
	}
	e.ExtendedProps.Type = EventTypeScheduled
	e.AllDay = !HasTimeOfDay(e.Start)
	return e
}

// 日付・日時文字列の受理フォーマット。
// 秒以下の小数部はtime.Parseが自動的に受け付ける。
const (
	DateLayout        = "2006-01-02"
	DateTimeLayout    = "2006-01-02T15:04"
	dateTimeSecLayout = "2006-01-02T15:04:05"
)

// HasTimeOfDay は日付文字列が時刻成分を含むかどうかを返す。
func HasTimeOfDay(s string) bool {
	return strings.Contains(s, "T")
}

// ParseEventTime はイベントのstart/end文字列を解釈する。
// オフセットを持たない値はlocのローカル時刻として扱う。
func ParseEventTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{dateTimeSecLayout, DateTimeLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
