package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/metrics"
	"park-puls/internal/store"
)

const (
	thanksMessage    = "Thank you for your comment!"
	maxFeedbackBody  = 16 << 10
	defaultListLimit = 50
	maxListLimit     = 500
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}

// 文档注释：提交反馈
// 背景：公园名优先按 park_index 从当前快照取（名称缺失记为 Unknown），否则使用请求中的 park_name。
// 约束：评分 1..5；同一访客在去重窗口内的相同提交只写入一次，重复提交返回 200 duplicate；未启用 Redis 时不去重。
// 去重位在落库成功后才写入；并发的两次相同提交可能都落库，可接受。
func (h *handler) postFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody))
	if err := dec.Decode(&req); err != nil {
		metrics.FeedbackRejectedTotal.Inc()
		writeError(w, http.StatusBadRequest, "bad_request", "body must be a JSON object")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		metrics.FeedbackRejectedTotal.Inc()
		writeError(w, http.StatusBadRequest, "invalid_feedback", validationMessage(err))
		return
	}
	parkName := strings.TrimSpace(req.ParkName)
	if req.ParkIndex != nil {
		p := h.Parks.Load().Park(*req.ParkIndex)
		if p == nil {
			metrics.FeedbackRejectedTotal.Inc()
			writeError(w, http.StatusNotFound, "unknown_park", "no park with this index")
			return
		}
		parkName = p.Name(h.Themes.NameColumn)
	}
	if parkName == "" {
		metrics.FeedbackRejectedTotal.Inc()
		writeError(w, http.StatusBadRequest, "invalid_feedback", "park_index or park_name is required")
		return
	}

	ctx := r.Context()
	visitor := getVisitorIP(r)
	data := []byte(visitor + "\x00" + parkName + "\x00" + strconv.Itoa(req.Rating) + "\x00" + req.Comment)
	bkey := bloomKey(h.now(), h.Config.DedupeTTL)
	positions := bloomPositions(data, bloomBits, bloomHashes)
	seen, err := bloomSeen(ctx, h.Redis, bkey, positions)
	if err != nil {
		logger.L().Warn("feedback_dedupe_error", "err", err)
	}
	if seen {
		metrics.FeedbackDuplicateTotal.Inc()
		logger.L().Debug("feedback_duplicate", "park", parkName, "ip", visitor)
		writeJSON(w, http.StatusOK, feedbackResponse{Status: "duplicate", Message: thanksMessage, Stars: mapview.Stars(req.Rating)})
		return
	}

	fb, err := h.Store.LogFeedback(ctx, parkName, req.Rating, req.Comment)
	if errors.Is(err, store.ErrInvalidRating) {
		metrics.FeedbackRejectedTotal.Inc()
		writeError(w, http.StatusBadRequest, "invalid_feedback", err.Error())
		return
	}
	if err != nil {
		logger.L().Error("feedback_insert_error", "park", parkName, "err", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "feedback could not be saved")
		return
	}
	if err := bloomMark(ctx, h.Redis, bkey, positions, h.Config.DedupeTTL); err != nil {
		logger.L().Warn("feedback_dedupe_error", "err", err)
	}
	metrics.FeedbackInsertedTotal.Inc()
	writeJSON(w, http.StatusCreated, feedbackResponse{Status: "ok", Message: thanksMessage, Stars: mapview.Stars(fb.Rating), Feedback: fb})
}

func (h *handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	items, err := h.Store.List(r.Context(), r.URL.Query().Get("park"), limit)
	if err != nil {
		logger.L().Error("feedback_list_error", "err", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "feedback could not be read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *handler) feedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context(), r.URL.Query().Get("park"))
	if err != nil {
		logger.L().Error("feedback_stats_error", "err", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "stats could not be read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parks": stats})
}

// exportFeedback：CSV 流式下载；写出开始后出错只能记录日志
func (h *handler) exportFeedback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/csv; charset=utf-8")
	w.Header().Set("content-disposition", `attachment; filename="park_feedback.csv"`)
	w.Header().Set("cache-control", "no-store")
	n, err := h.Store.Export(r.Context(), w)
	if err != nil {
		logger.L().Error("feedback_export_error", "rows", n, "err", err)
		return
	}
	logger.L().Debug("feedback_export_ok", "rows", n)
}
