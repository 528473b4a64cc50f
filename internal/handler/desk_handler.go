package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/assigndesk/internal/desk"
	"github.com/hitoshi/assigndesk/internal/model"
	"github.com/hitoshi/assigndesk/internal/repository"
)

// maxFormBodySize はフォーム系エンドポイントのボディ上限。
const maxFormBodySize = 64 * 1024

// DeskService はデスク操作ハンドラーが必要とするサービスインターフェース。
// desk.Controllerが満たす。
type DeskService interface {
	LoadEvents(ctx context.Context) ([]model.Event, error)
	ImportFeed(ctx context.Context) ([]model.Event, error)
	VisibleEvents(events, feedEvents []model.Event, state desk.ViewState) []model.Event
	Create(ctx context.Context, form desk.EventForm) (desk.MutationResult, error)
	Update(ctx context.Context, id string, form desk.EventForm) (desk.MutationResult, error)
	Claim(ctx context.Context, id, producer string) (desk.MutationResult, error)
	Reschedule(ctx context.Context, id, start string) (desk.MutationResult, error)
	Delete(ctx context.Context, id string) (repository.WriteResult, error)
	ImportItem(ctx context.Context, feedEvent model.Event) (desk.MutationResult, error)
}

// DeskHandler はフォーム単位のイベント操作と表示用の絞り込みを処理する。
type DeskHandler struct {
	service DeskService
	logger  *slog.Logger
}

// NewDeskHandler はDeskHandlerを生成する。
func NewDeskHandler(service DeskService, logger *slog.Logger) *DeskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeskHandler{service: service, logger: logger}
}

// eventResponse は変更操作のレスポンス。保存できなかった場合はnoteが付く。
type eventResponse struct {
	Event model.Event `json:"event"`
	Note  string      `json:"note,omitempty"`
}

type claimRequest struct {
	Producer string `json:"producer"`
}

type rescheduleRequest struct {
	Start string `json:"start"`
}

// Visible は表示状態に応じたイベントを表示順で返す。
// GET /events/visible?mode=calendar|feed&q=&date=&from=&to=
func (h *DeskHandler) Visible(w http.ResponseWriter, r *http.Request) {
	state, err := viewStateFromQuery(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	var events, feedEvents []model.Event
	if state.Mode == desk.ModeFeed {
		feedEvents, err = h.service.ImportFeed(r.Context())
	} else {
		events, err = h.service.LoadEvents(r.Context())
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.service.VisibleEvents(events, feedEvents, state))
}

// Create はフォームから新しいイベントを作成する。
// POST /desk/events
func (h *DeskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form desk.EventForm
	if !decodeJSONBody(w, r, maxFormBodySize, &form) {
		return
	}
	result, err := h.service.Create(r.Context(), form)
	h.writeMutation(w, http.StatusCreated, result, err)
}

// Update はイベントの全フィールドをフォームの値で上書きする。
// PUT /desk/events/{id}
func (h *DeskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var form desk.EventForm
	if !decodeJSONBody(w, r, maxFormBodySize, &form) {
		return
	}
	result, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), form)
	h.writeMutation(w, http.StatusOK, result, err)
}

// Claim はイベントの担当を宣言する。
// POST /desk/events/{id}/claim
func (h *DeskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeJSONBody(w, r, maxFormBodySize, &req) {
		return
	}
	result, err := h.service.Claim(r.Context(), chi.URLParam(r, "id"), req.Producer)
	h.writeMutation(w, http.StatusOK, result, err)
}

// Reschedule はカレンダー上のドラッグ操作で開始日時を変更する。
// PATCH /desk/events/{id}/start
func (h *DeskHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !decodeJSONBody(w, r, maxFormBodySize, &req) {
		return
	}
	result, err := h.service.Reschedule(r.Context(), chi.URLParam(r, "id"), req.Start)
	h.writeMutation(w, http.StatusOK, result, err)
}

// Delete はイベントを削除する。
// DELETE /desk/events/{id}
func (h *DeskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if result.Note != "" {
		writeJSON(w, http.StatusOK, saveEventsResponse{Success: true, Note: result.Note})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import はフィードの候補イベントを通常のイベントとして取り込む。
// POST /desk/import
func (h *DeskHandler) Import(w http.ResponseWriter, r *http.Request) {
	var feedEvent model.Event
	if !decodeJSONBody(w, r, maxFormBodySize, &feedEvent) {
		return
	}
	result, err := h.service.ImportItem(r.Context(), feedEvent)
	h.writeMutation(w, http.StatusCreated, result, err)
}

func (h *DeskHandler) writeMutation(w http.ResponseWriter, status int, result desk.MutationResult, err error) {
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, status, eventResponse{Event: result.Event, Note: result.Write.Note})
}

// viewStateFromQuery はクエリパラメータから表示状態を組み立てる。
// 未指定の項目は初期状態（カレンダー、全期間）のまま。
func viewStateFromQuery(r *http.Request) (desk.ViewState, error) {
	q := r.URL.Query()
	state := desk.NewViewState()
	verr := &model.ValidationError{}

	if mode := strings.TrimSpace(q.Get("mode")); mode != "" {
		if m := desk.Mode(mode); m.Valid() {
			state = state.WithMode(m)
		} else {
			verr.Add("mode", "mode must be calendar or feed")
		}
	}

	state = state.WithKeyword(q.Get("q"))

	if date := strings.TrimSpace(q.Get("date")); date != "" {
		if f := desk.DateFilter(date); f.Valid() {
			state = state.WithDateFilter(f)
		} else {
			verr.Add("date", "Unknown date filter: "+date)
		}
	}

	if state.DateFilter == desk.DateFilterCustom {
		from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
		// 片方だけの指定は絞り込みなしとして扱うが、値がある場合は形式を検証する
		for field, v := range map[string]string{"from": from, "to": to} {
			if v == "" {
				continue
			}
			if _, err := time.Parse(model.DateLayout, v); err != nil {
				verr.Add(field, field+" must be a date in YYYY-MM-DD format")
			}
		}
		state = state.
			WithPendingCustom(desk.DateRange{Start: from, End: to}).
			ApplyCustomRange()
	}

	if verr.HasErrors() {
		return desk.ViewState{}, verr
	}
	return state, nil
}
