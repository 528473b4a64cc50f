package security

import "testing"

var _ TextSanitizerService = (*textSanitizer)(nil)

func TestPlainText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字", "", ""},
		{"プレーンテキストはそのまま", "Career fair", "Career fair"},
		{
			name:  "タグを除去する",
			input: `<div><p>Join us for <strong>free</strong> pizza</p></div>`,
			want:  "Join us for free pizza",
		},
		{
			name:  "microformat要素のテキストは残る",
			input: `<time class="dt-start" datetime="2025-01-15T18:00:00Z">Wed, Jan 15</time> at <span class="p-location">Student Center</span>`,
			want:  "Wed, Jan 15 at Student Center",
		},
		{"文字参照を展開する", "Arts &amp; Crafts &lt;3", "Arts & Crafts <3"},
		{"空白をまとめて前後を落とす", "  <p>line one</p>\n\n\t<p>line two</p>  ", "line one line two"},
		{"scriptの中身は残さない", `Hello<script>alert(1)</script>`, "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 同一入力に対して常に同一出力を返す
func TestPlainText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	once := s.PlainText("<p>Tom &amp; Jerry</p>")
	if twice := s.PlainText(once); twice != once {
		t.Errorf("PlainText not idempotent: %q -> %q", once, twice)
	}
}

func TestPlainText_SeparatesAdjacentElements(t *testing.T) {
	got := NewTextSanitizer().PlainText(`<p>First</p><p>Second</p><span>Third</span>`)
	if got != "First Second Third" {
		t.Errorf("PlainText() = %q, want %q", got, "First Second Third")
	}
}
