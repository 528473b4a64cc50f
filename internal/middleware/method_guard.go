package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/assigndesk/internal/model"
)

// NewMethodGuard は許可されたメソッド以外を405で拒否するミドルウェアを返す。
// レスポンスにはAllowヘッダーを付与する。
func NewMethodGuard(allowed ...string) func(next http.Handler) http.Handler {
	allow := strings.Join(allowed, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, m := range allowed {
				if r.Method == m {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Allow", allow)
			WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
		})
	}
}

// MethodNotAllowedHandler はchiのルートに一致しないメソッドへの405レスポンスを返す。
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
}

// routePattern はchiのルートパターンを返す。ルーティング前や未一致の場合は"unmatched"。
// パスをそのままラベルにするとカーディナリティが増えるため。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
