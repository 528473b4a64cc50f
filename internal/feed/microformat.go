package feed

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// eventMarkup は説明文HTMLに埋め込まれたh-eventマイクロフォーマットの値。
//
//	<time class="dt-start" datetime="2025-01-15T18:00:00Z">...</time>
//	<time class="dt-end" datetime="2025-01-15T20:00:00Z">...</time>
//	<span class="p-location">Student Center</span>
type eventMarkup struct {
	Start    string // dt-startのdatetime属性（未設定の場合は空）
	End      string // dt-endのdatetime属性（任意）
	Location string // p-locationのテキスト（前後の空白を除去）
}

// parseEventMarkup は説明文HTMLから開始・終了日時と場所を取り出す。
// 要素が見つからない場合は該当フィールドを空のまま返す。
func parseEventMarkup(descriptionHTML string) (eventMarkup, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(descriptionHTML))
	if err != nil {
		return eventMarkup{}, fmt.Errorf("説明文HTMLの解析に失敗: %w", err)
	}

	var m eventMarkup
	if v, ok := doc.Find("time.dt-start").First().Attr("datetime"); ok {
		m.Start = strings.TrimSpace(v)
	}
	if v, ok := doc.Find("time.dt-end").First().Attr("datetime"); ok {
		m.End = strings.TrimSpace(v)
	}
	m.Location = strings.TrimSpace(doc.Find("span.p-location").First().Text())
	return m, nil
}
