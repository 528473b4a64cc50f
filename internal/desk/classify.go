// Package desk はアサインメントデスクの中核ロジックを提供する。
// イベントの分類・絞り込み・並べ替え（純粋関数）と、
// 読み込み → 変更 → 全件書き戻しを行うコントローラで構成される。
package desk

import "github.com/hitoshi/assigndesk/internal/model"

// IsUnscheduled は開始日時を持たないイベントかどうかを返す。
func IsUnscheduled(e model.Event) bool {
	return e.Start == ""
}

// IsScheduled は開始日時を持つイベントかどうかを返す。
func IsScheduled(e model.Event) bool {
	return !IsUnscheduled(e)
}

// IsAvailable は担当者募集中の予定済みイベントかどうかを返す。
func IsAvailable(e model.Event) bool {
	return IsScheduled(e) && e.ExtendedProps.Status == model.StatusAvailable
}

// IsClaimed は担当が決まった（AVAILABLE以外の）予定済みイベントかどうかを返す。
func IsClaimed(e model.Event) bool {
	return IsScheduled(e) && e.ExtendedProps.Status != model.StatusAvailable
}
