// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIのバナーに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Details  string // 下位エラーの詳細（任意）
	Category string // カテゴリ: storage, feed, validation, request, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeFeedUnavailable    = "FEED_UNAVAILABLE"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeAlreadyClaimed     = "ALREADY_CLAIMED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewStorageUnavailableError はブロブストアの読み書き失敗エラーを生成する。
func NewStorageUnavailableError(message string, cause error) *APIError {
	e := &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  message,
		Category: "storage",
		Action:   "Reload the page to retry. Unsaved changes may need to be re-entered.",
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewFeedUnavailableError は外部フィードの取得失敗エラーを生成する。
func NewFeedUnavailableError(cause error) *APIError {
	e := &APIError{
		Code:     ErrCodeFeedUnavailable,
		Message:  "Failed to fetch Engage RSS feed",
		Category: "feed",
		Action:   "The campus events feed may be down. Try the import again later.",
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// ValidationError はフォーム入力の検証エラーを表す。
// Fieldsはフィールド名からメッセージへの対応で、UIがフィールド近傍に表示する。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// Add はフィールドのエラーを追加する。同じフィールドへの2回目以降は無視する。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors はエラーが1件以上登録されているかを返す。
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// NewValidationAPIError は検証エラーをAPIErrorに変換する。
func NewValidationAPIError(verr *ValidationError) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "One or more fields are invalid",
		Details:  fmt.Sprint(verr.Fields),
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("Method %s Not Allowed", method),
		Category: "request",
		Action:   "Use one of the methods listed in the Allow header.",
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("Event not found: %s", eventID),
		Category: "validation",
		Action:   "The event may have been deleted. Reload the calendar.",
	}
}

// NewAlreadyClaimedError は担当者が既に設定されたイベントへのクレームエラーを生成する。
func NewAlreadyClaimedError(eventID, producer string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyClaimed,
		Message:  fmt.Sprintf("Event %s is already claimed by %s", eventID, producer),
		Category: "validation",
		Action:   "Pick another available event or ask the current producer to release it.",
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Failed to parse request body",
		Details:  reason,
		Category: "request",
		Action:   "Send a well-formed JSON body.",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "request",
		Action:   "Wait for the time given in the Retry-After header and retry.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
