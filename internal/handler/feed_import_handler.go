package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/assigndesk/internal/model"
)

// FeedImporter は外部フィードの候補イベント取得インターフェース。
type FeedImporter interface {
	ImportFeed(ctx context.Context) ([]model.Event, error)
}

// FeedImportHandler は GET /feed-import を処理する。結果は保存しない。
type FeedImportHandler struct {
	importer FeedImporter
	logger   *slog.Logger
}

// NewFeedImportHandler はFeedImportHandlerを生成する。
func NewFeedImportHandler(importer FeedImporter, logger *slog.Logger) *FeedImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedImportHandler{importer: importer, logger: logger}
}

// ServeHTTP は外部フィードから今後の候補イベントを取得して返す。
func (h *FeedImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	events, err := h.importer.ImportFeed(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
