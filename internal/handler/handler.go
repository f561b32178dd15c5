package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/extractor"
	"github.com/newsflow/variantpad/internal/processor"
	"github.com/newsflow/variantpad/internal/service"
)

// Scraper 抓取与处理服务
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*service.ScrapeResult, error)
	Process(ctx context.Context, req service.ProcessRequest, progress func(processor.Progress)) (*service.ProcessResult, error)
	HasStore() bool
	Busy() bool
}

// Handler HTTP 处理器
type Handler struct {
	svc       Scraper
	semaphore chan struct{}
	config    *config.Config
	logger    *zap.Logger
	metrics   http.Handler
}

// ScrapeRequest 抓取请求
type ScrapeRequest struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout,omitempty"`
}

// VariantResponse 变体
type VariantResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ImageCount int      `json:"imageCount"`
	Images     []string `json:"images"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// OptionResponse 可选项
type OptionResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	ImageCount int    `json:"imageCount"`
}

// ScrapeResponse 抓取响应
type ScrapeResponse struct {
	URL           string            `json:"url"`
	FinalURL      string            `json:"finalUrl"`
	Title         string            `json:"title,omitempty"`
	SiteName      string            `json:"siteName,omitempty"`
	ProductSource string            `json:"productSource,omitempty"`
	Strategy      string            `json:"strategy"`
	Variants      []VariantResponse `json:"variants"`
	Options       []OptionResponse  `json:"options"`
	AllImages     []string          `json:"allImages"`
	Status        string            `json:"status"`
	Duration      int64             `json:"duration"`
}

// ProcessRequest 处理请求
type ProcessRequest struct {
	URL             string `json:"url"`
	Variant         string `json:"variant,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Store           bool   `json:"store,omitempty"`
	Timeout         int    `json:"timeout,omitempty"`
}

// ProcessResponse 处理响应（上传归档或无图片成功时返回 JSON）
type ProcessResponse struct {
	URL        string              `json:"url"`
	Variant    string              `json:"variant"`
	Status     string              `json:"status"`
	Attempted  int                 `json:"attempted"`
	Succeeded  int                 `json:"succeeded"`
	Failures   []processor.Failure `json:"failures,omitempty"`
	ArchiveURL string              `json:"archiveUrl,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status       string `json:"status"`
	Concurrency  int    `json:"concurrency"`
	Available    int    `json:"available"`
	Processing   bool   `json:"processing"`
	ArchiveStore bool   `json:"archiveStore"`
}

// New 创建处理器，metrics 为 /metrics 的处理器（可为 nil）
func New(svc Scraper, cfg *config.Config, logger *zap.Logger, metrics http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:       svc,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Router 创建路由
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", h.handleScrape)
		r.Post("/process", h.handleProcess)
	})

	return r
}

// handleHealth 健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		Concurrency:  h.config.MaxConcurrent,
		Available:    h.config.MaxConcurrent - len(h.semaphore),
		Processing:   h.svc.Busy(),
		ArchiveStore: h.svc.HasStore(),
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleScrape 抓取商品页并返回变体列表
func (h *Handler) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.acquire() {
		h.writeError(w, http.StatusServiceUnavailable, "Server is busy")
		return
	}
	defer h.release()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout(req.Timeout, 4))
	defer cancel()

	result, err := h.svc.Scrape(ctx, req.URL)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, toScrapeResponse(result))
}

// handleProcess 处理选中的变体图片，默认直接返回 zip
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Store && !h.svc.HasStore() {
		h.writeError(w, http.StatusBadRequest, "Archive store is not configured")
		return
	}

	if !h.acquire() {
		h.writeError(w, http.StatusServiceUnavailable, "Server is busy")
		return
	}
	defer h.release()

	// 批处理逐张下载，超时按单页超时的倍数放宽
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout(req.Timeout, 40))
	defer cancel()

	result, err := h.svc.Process(ctx, service.ProcessRequest{
		URL:       req.URL,
		Selection: req.Variant,
		Pad: processor.PadOptions{
			Width:           req.Width,
			Height:          req.Height,
			BackgroundColor: req.BackgroundColor,
		},
		Store: req.Store,
		JobID: middleware.GetReqID(r.Context()),
	}, nil)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := ProcessResponse{
		URL:        req.URL,
		Variant:    result.Selection,
		Status:     result.Status,
		Attempted:  result.Report.Attempted,
		Succeeded:  result.Report.Succeeded,
		Failures:   result.Report.Failures,
		ArchiveURL: result.ArchiveURL,
	}

	switch {
	case result.Archive == nil:
		resp.Error = "No images could be processed"
		h.writeJSON(w, http.StatusUnprocessableEntity, resp)
	case req.Store:
		h.writeJSON(w, http.StatusOK, resp)
	default:
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.ArchiveName+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Archive)))
		w.Header().Set("X-Images-Attempted", strconv.Itoa(result.Report.Attempted))
		w.Header().Set("X-Images-Succeeded", strconv.Itoa(result.Report.Succeeded))
		if failed := failedIndices(result.Report.Failures); failed != "" {
			w.Header().Set("X-Images-Failed", failed)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.Archive); err != nil {
			h.logger.Warn("write archive", zap.Error(err))
		}
	}
}

func toScrapeResponse(result *service.ScrapeResult) ScrapeResponse {
	resp := ScrapeResponse{
		URL:           result.URL,
		FinalURL:      result.FinalURL,
		Title:         result.Title,
		SiteName:      result.SiteName,
		ProductSource: result.ProductSource,
		Strategy:      result.Strategy,
		Variants:      make([]VariantResponse, 0, len(result.Variants)),
		Options:       make([]OptionResponse, 0, len(result.Selections)),
		AllImages:     result.AllImages,
		Status:        result.Status,
		Duration:      result.Duration.Milliseconds(),
	}
	for _, v := range result.Variants {
		resp.Variants = append(resp.Variants, VariantResponse{
			ID:         v.ID,
			Name:       extractor.SanitizeName(v.Name),
			ImageCount: len(v.Images),
			Images:     v.Images,
			Fallback:   v.Fallback,
		})
	}
	for _, s := range result.Selections {
		resp.Options = append(resp.Options, OptionResponse{ID: s.ID, Label: s.Label, ImageCount: len(s.Images)})
	}
	return resp
}

// failedIndices 失败图片的序号（与 zip 内文件名序号一致），逗号分隔
func failedIndices(failures []processor.Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, strconv.Itoa(f.Index))
	}
	return strings.Join(parts, ",")
}

// statusFor 错误类别到状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrVariantNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptySelection), errors.Is(err, service.ErrNoImages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRetrieval):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) acquire() bool {
	select {
	case h.semaphore <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *Handler) release() {
	<-h.semaphore
}

func (h *Handler) timeout(ms int, factor time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return h.config.RequestTimeout * factor
}

// requestLogger 请求日志
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// writeJSON 写入 JSON 响应
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError 写入错误响应
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
