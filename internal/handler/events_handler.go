package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/assigndesk/internal/desk"
	"github.com/hitoshi/assigndesk/internal/model"
	"github.com/hitoshi/assigndesk/internal/repository"
)

// DefaultMaxEventsBodySize はPOST /eventsのボディ上限。
const DefaultMaxEventsBodySize = 5 * 1024 * 1024

// EventsStore は保存済みイベント一覧の読み書きインターフェース。
// repository.EventsRepositoryを満たす。
type EventsStore interface {
	List(ctx context.Context) ([]model.Event, error)
	ReplaceAll(ctx context.Context, events []model.Event) (repository.WriteResult, error)
}

// EventsHandler は /events の一括読み書きを処理する。
type EventsHandler struct {
	store       EventsStore
	maxBodySize int64
	logger      *slog.Logger
}

// NewEventsHandler はEventsHandlerを生成する。
func NewEventsHandler(store EventsStore, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		store:       store,
		maxBodySize: DefaultMaxEventsBodySize,
		logger:      logger,
	}
}

// saveEventsResponse はPOST /eventsの成功レスポンス。
type saveEventsResponse struct {
	Success bool   `json:"success"`
	Note    string `json:"note,omitempty"`
}

// ServeHTTP はメソッドに応じて一覧取得と一括保存を振り分ける。
// GET, POST以外はルーター側のMethodGuardで405にする。
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.ReplaceAll(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
	}
}

// List は保存済みの全イベントを返す。
// GET /events
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ReplaceAll はリクエストボディのイベント配列で保存内容全体を置き換える。
// POST /events
func (h *EventsHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	var events []model.Event
	if !decodeJSONBody(w, r, h.maxBodySize, &events) {
		return
	}
	if events == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body must be a JSON array of events"))
		return
	}

	normalized, err := desk.ValidateEvents(events)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	result, err := h.store.ReplaceAll(r.Context(), normalized)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, saveEventsResponse{Success: true, Note: result.Note})
}
