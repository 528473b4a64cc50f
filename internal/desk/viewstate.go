package desk

import "time"

// ViewState は画面の表示状態を表す不変の値。
// 各操作は新しい値を返し、元の値は変更しない。
type ViewState struct {
	Mode       Mode
	Keyword    string
	DateFilter DateFilter
	// Custom は適用済みの任意期間。絞り込みに使われる。
	Custom DateRange
	// PendingCustom は入力中で未適用の任意期間。
	PendingCustom DateRange
}

// NewViewState は初期状態（カレンダーモード、全期間）を返す。
func NewViewState() ViewState {
	return ViewState{Mode: ModeCalendar, DateFilter: DateFilterAll}
}

// WithMode は表示モードを切り替える。日付条件は保持され、フィードモードでは単に適用されない。
func (v ViewState) WithMode(m Mode) ViewState {
	v.Mode = m
	return v
}

// WithKeyword はキーワードを設定する。
func (v ViewState) WithKeyword(keyword string) ViewState {
	v.Keyword = keyword
	return v
}

// WithDateFilter は日付絞り込み条件を切り替える。
// customを選んだ場合は適用済みの期間を入力欄の初期値としてコピーする。
func (v ViewState) WithDateFilter(f DateFilter) ViewState {
	v.DateFilter = f
	if f == DateFilterCustom {
		v.PendingCustom = v.Custom
	}
	return v
}

// WithPendingCustom は入力中の任意期間を更新する。絞り込みには影響しない。
func (v ViewState) WithPendingCustom(r DateRange) ViewState {
	v.PendingCustom = r
	return v
}

// ApplyCustomRange は入力中の任意期間を適用する。
func (v ViewState) ApplyCustomRange() ViewState {
	v.Custom = v.PendingCustom
	return v
}

// Reset はモードを保ったまま絞り込み条件を初期状態に戻す。
func (v ViewState) Reset() ViewState {
	reset := NewViewState()
	reset.Mode = v.Mode
	return reset
}

// Criteria は表示状態から絞り込みエンジンへの入力を組み立てる。
func (v ViewState) Criteria(now time.Time, loc *time.Location, weekStart time.Weekday) Criteria {
	return Criteria{
		Mode:       v.Mode,
		Keyword:    v.Keyword,
		DateFilter: v.DateFilter,
		Custom:     v.Custom,
		Now:        now,
		Location:   loc,
		WeekStart:  weekStart,
	}
}
