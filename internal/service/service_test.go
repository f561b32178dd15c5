package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/fetcher"
	"github.com/newsflow/variantpad/internal/processor"
	"github.com/newsflow/variantpad/internal/resolver"
)

const productURL = "https://shop.example.com/products/halfday-duffel"

type fakeFetcher struct {
	pages  map[string]string
	images map[string][]byte
	calls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) *fetcher.FetchResult {
	return f.FetchWithHeaders(ctx, url, nil)
}

func (f *fakeFetcher) FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *fetcher.FetchResult {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return &fetcher.FetchResult{URL: url, Error: fmt.Errorf("%w: %s", fetcher.ErrAllRoutesFailed, url)}
	}
	return &fetcher.FetchResult{URL: url, FinalURL: url, HTML: body, Strategy: "fake"}
}

func (f *fakeFetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	data, ok := f.images[url]
	if !ok {
		return nil, errors.New("404")
	}
	return data, nil
}

type fakeStore struct {
	jobID, name string
	size        int
}

func (s *fakeStore) SaveArchive(ctx context.Context, jobID, name string, content []byte) (string, error) {
	s.jobID, s.name, s.size = jobID, name, len(content)
	return "https://minio.test/archives/" + jobID + "/" + name, nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func blueFixture(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			productURL + ".json": `{"product":{"title":"Halfday Duffel","variants":[{"id":1,"title":"Blue"},{"id":2,"title":"<b>Red</b>"}],
				"images":[{"id":5,"src":"//cdn.shopify.com/s/files/1/blue1.jpg?v=1","variant_ids":[1]},
				          {"id":6,"src":"//cdn.shopify.com/s/files/1/red1.jpg","variant_ids":[2]}]}}`,
			productURL: `<html><head><title>Halfday Duffel</title></head><body>
				<div data-variant="Blue"><img src="//cdn.shopify.com/s/files/1/blue2.jpg"></div>
				</body></html>`,
		},
		images: map[string][]byte{
			"https://cdn.shopify.com/s/files/1/blue1.jpg": tinyPNG(t),
			"https://cdn.shopify.com/s/files/1/blue2.jpg": tinyPNG(t),
		},
	}
}

func newTestService(f PageFetcher, store ArchiveStore) *Service {
	return New(Options{Fetcher: f, Store: store, Logger: zap.NewNop()})
}

func TestScrapeInvalidInput(t *testing.T) {
	f := &fakeFetcher{}
	svc := newTestService(f, nil)

	for _, raw := range []string{"", "   ", "ftp://shop.example.com/p", "shop.example.com/products/bag", "https://"} {
		_, err := svc.Scrape(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidInput, raw)
	}
	assert.Empty(t, f.calls, "非法输入不触发抓取")
}

func TestScrapeRetrievalFailure(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, nil)

	_, err := svc.Scrape(context.Background(), productURL)
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, fetcher.ErrAllRoutesFailed)
}

func TestScrapeEndToEnd(t *testing.T) {
	f := blueFixture(t)
	res, err := newTestService(f, nil).Scrape(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, []string{productURL + ".json", productURL}, f.calls)
	assert.Equal(t, "endpoint", res.ProductSource)
	assert.Equal(t, "Halfday Duffel", res.Title)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, []string{
		"https://cdn.shopify.com/s/files/1/blue1.jpg",
		"https://cdn.shopify.com/s/files/1/blue2.jpg",
	}, res.Variants[0].Images)
	assert.Equal(t, []string{"https://cdn.shopify.com/s/files/1/red1.jpg"}, res.Variants[1].Images)

	require.Len(t, res.Selections, 3)
	assert.Equal(t, resolver.AllLabel, res.Selections[0].Label)
	assert.Equal(t, "Blue (2 images)", res.Selections[1].Label)
	assert.Equal(t, "Red (1 images)", res.Selections[2].Label)
	assert.Equal(t, "Found 3 total images across 2 variants", res.Status)
}

func TestScrapeEmptyPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{productURL: `<html><body><p>Sold out</p></body></html>`}}
	res, err := newTestService(f, nil).Scrape(context.Background(), productURL)
	require.NoError(t, err)

	assert.True(t, res.Empty())
	assert.Empty(t, res.Variants)
	assert.Equal(t, "No images found on this page", res.Status)

	_, err = newTestService(f, nil).ProcessSelection(context.Background(), res, ProcessRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestProcess(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(blueFixture(t), store)

	var progress []string
	res, err := svc.Process(context.Background(), ProcessRequest{
		URL:       productURL,
		Selection: "1",
		Pad:       processor.PadOptions{Width: 32, Height: 18},
		Store:     true,
		JobID:     "job-7",
	}, func(p processor.Progress) { progress = append(progress, p.Message) })
	require.NoError(t, err)

	assert.Equal(t, "Successfully processed 2 of 2 images", res.Status)
	assert.Equal(t, processor.ArchiveName, res.ArchiveName)
	assert.Equal(t, "https://minio.test/archives/job-7/widescreen_images.zip", res.ArchiveURL)
	assert.Equal(t, len(res.Archive), store.size)
	assert.Equal(t, []string{"Processing image 1 of 2", "Processing image 2 of 2"}, progress)

	zr, err := zip.NewReader(bytes.NewReader(res.Archive), int64(len(res.Archive)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"shopify_image_0_widescreen.png", "shopify_image_1_widescreen.png"}, names)
}

func TestProcessAllWithPartialFailure(t *testing.T) {
	svc := newTestService(blueFixture(t), nil)

	res, err := svc.Process(context.Background(), ProcessRequest{URL: productURL}, nil)
	require.NoError(t, err)

	assert.Equal(t, "all", res.Selection)
	assert.Equal(t, 3, res.Report.Attempted)
	assert.Equal(t, 2, res.Report.Succeeded)
	require.Len(t, res.Report.Failures, 1)
	assert.True(t, strings.HasSuffix(res.Report.Failures[0].URL, "red1.jpg"))
	assert.Empty(t, res.ArchiveURL)
	assert.NotEmpty(t, res.Archive)
}

func TestProcessSelectionErrors(t *testing.T) {
	svc := newTestService(blueFixture(t), nil)

	_, err := svc.Process(context.Background(), ProcessRequest{URL: productURL, Selection: "99"}, nil)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = svc.Process(context.Background(), ProcessRequest{
		URL: productURL, Pad: processor.PadOptions{BackgroundColor: "blue"},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessRejectsOversizedCanvas(t *testing.T) {
	f := blueFixture(t)
	svc := newTestService(f, nil)

	_, err := svc.Process(context.Background(), ProcessRequest{
		URL: productURL, Pad: processor.PadOptions{Width: 200000, Height: 200000},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, processor.ErrCanvasTooLarge)

	// 请求中的上限不能放宽服务端配置
	_, err = svc.Process(context.Background(), ProcessRequest{
		URL: productURL, Pad: processor.PadOptions{Width: 9000, Height: 100, MaxDimension: 100000},
	}, nil)
	assert.ErrorIs(t, err, processor.ErrCanvasTooLarge)
	assert.False(t, svc.Busy())
}

func TestProcessConfiguredCanvasLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PadMaxDimension = 64

	opts := OptionsFromConfig(cfg)
	opts.Fetcher = blueFixture(t)
	opts.Logger = zap.NewNop()
	svc := New(opts)

	_, err := svc.Process(context.Background(), ProcessRequest{
		URL: productURL, Pad: processor.PadOptions{Width: 128, Height: 32},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := svc.Process(context.Background(), ProcessRequest{
		URL: productURL, Selection: "1", Pad: processor.PadOptions{Width: 64, Height: 36},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Succeeded)
}

func TestProcessNothingSucceeded(t *testing.T) {
	f := blueFixture(t)
	f.images = nil
	res, err := newTestService(f, nil).Process(context.Background(), ProcessRequest{URL: productURL, Selection: "2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Successfully processed 0 of 1 images", res.Status)
	assert.Nil(t, res.Archive)
}

func TestProductJSONURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://s.test/products/bag", "https://s.test/products/bag.json"},
		{"https://s.test/products/bag/?variant=12", "https://s.test/products/bag.json"},
		{"https://s.test/products/bag.json", "https://s.test/products/bag.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProductJSONURL(tt.input))
	}
}
