// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/assigndesk/internal/model"
)

// EventsRepository はイベント一覧の永続化インターフェース。
// コレクションは常に1つのJSON配列として読み書きし、部分更新やマージは行わない。
type EventsRepository interface {
	// List は保存済みの全イベントを返す。
	// 未保存の場合は既定のサンプルイベントで初期化してそれを返す。
	List(ctx context.Context) ([]model.Event, error)

	// ReplaceAll はイベント一覧全体を無条件に上書き保存する。
	ReplaceAll(ctx context.Context, events []model.Event) (WriteResult, error)
}

// WriteResult は書き込み結果を表す。
// 寛容モードで保存に失敗した場合はPersisted=falseとNoteで劣化を呼び出し元に伝える。
type WriteResult struct {
	Persisted bool
	Note      string
}

// StorageMetrics はブロブ操作のメトリクス記録インターフェース。
type StorageMetrics interface {
	RecordBlobOperation(op, outcome string, duration time.Duration)
	RecordDegradedWrite(op string)
}
