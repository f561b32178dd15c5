// Package service 编排一次抓取（页面 → 候选 → 变体）与一次处理（选择 → 批处理 → 归档）。
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/extractor"
	"github.com/newsflow/variantpad/internal/fetcher"
	"github.com/newsflow/variantpad/internal/imageurl"
	"github.com/newsflow/variantpad/internal/monitoring"
	"github.com/newsflow/variantpad/internal/processor"
	"github.com/newsflow/variantpad/internal/product"
	"github.com/newsflow/variantpad/internal/resolver"
)

// PageFetcher 页面与图片抓取
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *fetcher.FetchResult
	FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *fetcher.FetchResult
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// ArchiveStore 归档上传
type ArchiveStore interface {
	SaveArchive(ctx context.Context, jobID, name string, content []byte) (string, error)
}

// Options 服务依赖与参数
type Options struct {
	Fetcher  PageFetcher
	Store    ArchiveStore
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	Extract  extractor.Options
	Resolve  resolver.Options
	Defaults processor.PadOptions
}

// OptionsFromConfig 根据配置生成提取/解析/画布参数
func OptionsFromConfig(cfg *config.Config) Options {
	ext := extractor.DefaultOptions()
	ext.MarkerAttribute = cfg.MarkerAttribute
	if len(cfg.CDNHosts) > 0 {
		ext.CDNHosts = cfg.CDNHosts
	}

	res := resolver.DefaultOptions()
	res.Normalize = imageurl.Options{
		CDNHosts:      ext.CDNHosts,
		Extensions:    imageurl.DefaultExtensions,
		ExcludedWords: imageurl.DefaultExcludedWords,
	}

	return Options{
		Extract: ext,
		Resolve: res,
		Defaults: processor.PadOptions{
			Width:           cfg.PadWidth,
			Height:          cfg.PadHeight,
			BackgroundColor: cfg.BackgroundColor,
			MaxDimension:    cfg.PadMaxDimension,
		},
	}
}

// Service 抓取与处理服务
type Service struct {
	fetcher   PageFetcher
	extractor *extractor.Extractor
	resolver  *resolver.Resolver
	batch     *processor.Batch
	store     ArchiveStore
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	defaults  processor.PadOptions
}

// New 创建服务
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Defaults.Width <= 0 || opts.Defaults.Height <= 0 {
		opts.Defaults.Width, opts.Defaults.Height = 1920, 1080
	}
	if opts.Defaults.BackgroundColor == "" {
		opts.Defaults.BackgroundColor = "#FFFFFF"
	}
	if opts.Extract.MarkerAttribute == "" {
		opts.Extract = extractor.DefaultOptions()
	}
	if len(opts.Resolve.Normalize.Extensions) == 0 {
		opts.Resolve = resolver.DefaultOptions()
	}

	batch := processor.NewBatch(opts.Fetcher, processor.NewImageProcessor(), logger)
	if opts.Metrics != nil {
		batch.OnImage(opts.Metrics.ObserveImage)
	}

	return &Service{
		fetcher:   opts.Fetcher,
		extractor: extractor.New(opts.Extract, logger),
		resolver:  resolver.New(opts.Resolve, logger),
		batch:     batch,
		store:     opts.Store,
		metrics:   opts.Metrics,
		logger:    logger,
		defaults:  opts.Defaults,
	}
}

// HasStore 是否配置了归档存储
func (s *Service) HasStore() bool {
	return s.store != nil
}

// Busy 是否有批处理在运行
func (s *Service) Busy() bool {
	return s.batch.Running()
}

// ScrapeResult 抓取结果
type ScrapeResult struct {
	URL           string               `json:"url"`
	FinalURL      string               `json:"finalUrl"`
	Title         string               `json:"title,omitempty"`
	SiteName      string               `json:"siteName,omitempty"`
	ProductSource string               `json:"productSource,omitempty"`
	Strategy      string               `json:"strategy"`
	Variants      []resolver.Variant   `json:"variants"`
	AllImages     []string             `json:"allImages"`
	Selections    []resolver.Selection `json:"selections"`
	Status        string               `json:"status"`
	Duration      time.Duration        `json:"duration"`
}

// Empty 是否没有找到任何图片
func (r *ScrapeResult) Empty() bool {
	return len(r.AllImages) == 0
}

func (r *ScrapeResult) resolved() *resolver.Result {
	return &resolver.Result{Variants: r.Variants, AllImages: r.AllImages}
}

// Scrape 抓取商品页并解析变体图片
//
// 页面抓取失败返回 ErrRetrieval；没有图片不是错误，Status 中说明。
func (s *Service) Scrape(ctx context.Context, rawURL string) (*ScrapeResult, error) {
	start := time.Now()

	pageURL, err := ValidateURL(rawURL)
	if err != nil {
		s.countScrape("invalid_input")
		return nil, err
	}

	rec := s.fetchProduct(ctx, pageURL)

	page := s.fetcher.Fetch(ctx, pageURL)
	if page.Error != nil {
		s.countScrape("retrieval_failed")
		s.logger.Error("page retrieval failed", zap.String("url", pageURL), zap.Error(page.Error))
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, page.Error)
	}

	finalURL := page.FinalURL
	if finalURL == "" {
		finalURL = pageURL
	}

	ext := s.extractor.Extract(page.HTML, finalURL, rec)
	resolved := s.resolver.Resolve(finalURL, ext.Product, ext.Candidates)

	result := &ScrapeResult{
		URL:           pageURL,
		FinalURL:      finalURL,
		Title:         ext.Metadata.Title,
		SiteName:      ext.Metadata.SiteName,
		ProductSource: string(ext.ProductSource),
		Strategy:      page.Strategy,
		Variants:      resolved.Variants,
		AllImages:     resolved.AllImages,
		Selections:    displaySelections(resolved),
		Duration:      time.Since(start),
	}

	if result.Empty() {
		result.Status = "No images found on this page"
		s.countScrape("empty")
	} else {
		result.Status = fmt.Sprintf("Found %d total images across %d variants", len(result.AllImages), len(result.Variants))
		s.countScrape("ok")
	}
	if s.metrics != nil {
		s.metrics.ObserveScrapeDuration(result.Duration)
	}

	s.logger.Info("scrape finished",
		zap.String("url", pageURL),
		zap.String("strategy", page.Strategy),
		zap.String("product", result.ProductSource),
		zap.Int("variants", len(result.Variants)),
		zap.Int("images", len(result.AllImages)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// fetchProduct 通过 .json 端点获取商品记录，失败静默返回 nil
func (s *Service) fetchProduct(ctx context.Context, pageURL string) *product.Record {
	jsonURL := ProductJSONURL(pageURL)
	res := s.fetcher.FetchWithHeaders(ctx, jsonURL, map[string]string{"Accept": "application/json"})
	if res.Error != nil {
		s.logger.Debug("product json unavailable", zap.String("url", jsonURL), zap.Error(res.Error))
		return nil
	}
	rec, err := product.ParseEnvelope([]byte(res.HTML))
	if err != nil {
		s.logger.Debug("product json unparsable", zap.String("url", jsonURL), zap.Error(err))
		return nil
	}
	return rec
}

// ProcessRequest 处理请求
type ProcessRequest struct {
	URL       string               `json:"url"`
	Selection string               `json:"selection"`
	Pad       processor.PadOptions `json:"pad"`
	// 上传到归档存储并返回下载地址
	Store bool   `json:"store"`
	JobID string `json:"jobId,omitempty"`
}

// ProcessResult 处理结果
type ProcessResult struct {
	Scrape      *ScrapeResult     `json:"scrape"`
	Selection   string            `json:"selection"`
	Report      *processor.Report `json:"report"`
	Archive     []byte            `json:"-"`
	ArchiveName string            `json:"archiveName,omitempty"`
	ArchiveURL  string            `json:"archiveUrl,omitempty"`
	Status      string            `json:"status"`
}

// Process 抓取后处理选中的图片
func (s *Service) Process(ctx context.Context, req ProcessRequest, progress func(processor.Progress)) (*ProcessResult, error) {
	scraped, err := s.Scrape(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return s.ProcessSelection(ctx, scraped, req, progress)
}

// ProcessSelection 对已有抓取结果处理选中的图片
func (s *Service) ProcessSelection(ctx context.Context, scraped *ScrapeResult, req ProcessRequest, progress func(processor.Progress)) (*ProcessResult, error) {
	if scraped.Empty() {
		return nil, ErrNoImages
	}

	images, err := resolver.Select(scraped.resolved(), req.Selection)
	switch {
	case errors.Is(err, resolver.ErrUnknownSelection):
		return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, req.Selection)
	case errors.Is(err, resolver.ErrEmptySelection):
		return nil, fmt.Errorf("%w: %s", ErrEmptySelection, req.Selection)
	case err != nil:
		return nil, err
	}

	pad := s.padOptions(req.Pad)
	if err := pad.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	report, err := s.batch.Run(ctx, images, pad, progress)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		Scrape:    scraped,
		Selection: selectionID(req.Selection),
		Report:    report,
		Status:    report.Status(),
	}
	if report.Succeeded == 0 {
		return result, nil
	}

	archive, err := processor.BuildArchive(report.Files)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	result.Archive = archive
	result.ArchiveName = processor.ArchiveName

	if req.Store && s.store != nil {
		jobID := req.JobID
		if jobID == "" {
			jobID = uuid.NewString()
		}
		archiveURL, err := s.store.SaveArchive(ctx, jobID, processor.ArchiveName, archive)
		if err != nil {
			return nil, fmt.Errorf("store archive: %w", err)
		}
		result.ArchiveURL = archiveURL
	}
	return result, nil
}

func (s *Service) padOptions(req processor.PadOptions) processor.PadOptions {
	pad := s.defaults
	if req.Width > 0 {
		pad.Width = req.Width
	}
	if req.Height > 0 {
		pad.Height = req.Height
	}
	if req.BackgroundColor != "" {
		pad.BackgroundColor = req.BackgroundColor
	}
	return pad
}

func (s *Service) countScrape(outcome string) {
	if s.metrics != nil {
		s.metrics.IncScrapes(outcome)
	}
}

// displaySelections 选择列表（显示名已净化）
func displaySelections(res *resolver.Result) []resolver.Selection {
	sels := resolver.Selections(res)
	for i := range sels {
		name := extractor.SanitizeName(sels[i].Name)
		if i == 0 {
			sels[i].Name = name
			continue
		}
		sels[i].Name = name
		sels[i].Label = fmt.Sprintf("%s (%d images)", name, len(sels[i].Images))
	}
	return sels
}

func selectionID(id string) string {
	if id == "" {
		return resolver.AllID
	}
	return id
}

// ValidateURL 校验并规范化输入地址
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: not an http(s) url: %s", ErrInvalidInput, raw)
	}
	return u.String(), nil
}

// ProductJSONURL 商品页地址对应的 .json 端点
func ProductJSONURL(pageURL string) string {
	clean := strings.TrimRight(imageurl.Canonical(pageURL), "/")
	if strings.HasSuffix(clean, ".json") {
		return clean
	}
	return clean + ".json"
}
