package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/extractor"
	"github.com/newsflow/variantpad/internal/product"
)

const pageURL = "https://shop.example.com/products/halfday-duffel"

func cdn(name string) string {
	return "https://cdn.shopify.com/s/files/1/" + name
}

func newResolver() *Resolver {
	return New(DefaultOptions(), zap.NewNop())
}

func TestResolveNoCrossContamination(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Sand"}, {ID: "2", Title: "Jet"}},
		Images: []product.Image{
			{ID: "11", Src: cdn("p1.jpg"), VariantIDs: []product.ID{"1"}},
			{ID: "12", Src: cdn("p2.jpg"), VariantIDs: []product.ID{"2"}},
			{ID: "13", Src: cdn("p3.jpg"), VariantIDs: []product.ID{"1"}},
		},
	}

	res := newResolver().Resolve(pageURL, rec, nil)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, []string{cdn("p1.jpg"), cdn("p3.jpg")}, res.Variants[0].Images)
	assert.Equal(t, []string{cdn("p2.jpg")}, res.Variants[1].Images)
	assert.False(t, res.Variants[0].Fallback)
}

func TestResolveSharedImagesOnlyWhenEmpty(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Sand"}, {ID: "2", Title: "Jet"}},
		Images: []product.Image{
			{ID: "11", Src: cdn("a.jpg"), VariantIDs: []product.ID{"1"}},
			{ID: "12", Src: cdn("s.jpg")},
		},
	}

	res := newResolver().Resolve(pageURL, rec, nil)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, []string{cdn("a.jpg")}, res.Variants[0].Images)
	assert.Equal(t, []string{cdn("s.jpg")}, res.Variants[1].Images)
	assert.True(t, res.Variants[1].Fallback)
}

func TestResolveFallbackToAllImages(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Sand"}},
		Images:   []product.Image{{ID: "11", Src: cdn("x.jpg"), VariantIDs: []product.ID{"99"}}},
	}
	cands := []extractor.Candidate{{URL: "//cdn.shopify.com/s/files/1/page.png"}}

	res := newResolver().Resolve(pageURL, rec, cands)
	assert.Equal(t, []string{cdn("x.jpg"), cdn("page.png")}, res.Variants[0].Images)
	assert.Equal(t, res.AllImages, res.Variants[0].Images)
}

func TestResolveDropsImagesWithoutExtension(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Blue", FeaturedImage: cdn("featured")}},
		Images: []product.Image{
			{ID: "11", Src: cdn("blue-render"), VariantIDs: []product.ID{"1"}},
			{ID: "12", Src: cdn("blue.jpg"), VariantIDs: []product.ID{"1"}},
		},
	}
	cands := []extractor.Candidate{{Variant: "Blue", URL: cdn("zoom")}}

	res := newResolver().Resolve(pageURL, rec, cands)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, []string{cdn("blue.jpg")}, res.Variants[0].Images)
	assert.Equal(t, []string{cdn("blue.jpg")}, res.AllImages)
	for _, u := range res.AllImages {
		assert.Regexp(t, `\.(jpe?g|png|gif|webp)$`, u)
	}
}

func TestResolveFilenameHeuristic(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Jet"}},
		Images: []product.Image{
			{ID: "11", Src: cdn("premium-jetset.png")},
			{ID: "12", Src: cdn("halfday-duffel-jet-premium_047.png?v=3")},
		},
	}

	res := newResolver().Resolve(pageURL, rec, nil)
	assert.Equal(t, []string{cdn("halfday-duffel-jet-premium_047.png")}, res.Variants[0].Images)
	assert.False(t, res.Variants[0].Fallback)
}

func TestFilenameMatcher(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		src     string
		want    bool
	}{
		{"短横线两侧", "Jet", "halfday-duffel-jet-premium_047.png", true},
		{"下划线后接点", "jet", "bag_jet.jpg", true},
		{"短横线后接下划线", "Jet", "bag-jet_2.jpg", true},
		{"前缀不是分隔符", "Jet", "premium-jetset.png", false},
		{"出现在目录而非文件名", "Jet", "https://x.test/-jet-/bag.png", false},
		{"文件名开头", "Jet", "jet-bag.png", false},
		{"正则元字符被转义", "A+B", "bag-a+b.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFilenameMatcher(tt.variant).Match(tt.src))
		})
	}

	assert.Nil(t, NewFilenameMatcher("  "))
	assert.False(t, NewFilenameMatcher("").Match("a-b.png"))
}

func TestResolvePolicyOrder(t *testing.T) {
	rec := &product.Record{
		Variants: []product.Variant{{ID: "1", Title: "Jet", ImageID: "9"}},
		Images: []product.Image{
			{ID: "9", Src: cdn("main.jpg")},
			{ID: "8", Src: cdn("tagged.jpg"), VariantIDs: []product.ID{"1"}},
			{ID: "7", Src: cdn("bag-jet.png")},
		},
	}
	cands := []extractor.Candidate{
		{Variant: "jet", URL: "/lower.jpg"},
		{Variant: "Jet", URL: "/html.jpg"},
		{Variant: "Jet", URL: "//cdn.shopify.com/s/files/1/tagged.jpg?v=2"},
	}

	res := newResolver().Resolve(pageURL, rec, cands)
	assert.Equal(t, []string{
		cdn("tagged.jpg"),
		cdn("bag-jet.png"),
		"https://shop.example.com/html.jpg",
		"https://shop.example.com/lower.jpg",
		cdn("main.jpg"),
	}, res.Variants[0].Images)
}

func TestResolveEndToEnd(t *testing.T) {
	rec, err := product.Parse([]byte(`{"product":{"variants":[{"id":1,"title":"Blue"}],
		"images":[{"id":5,"src":"//cdn.shopify.com/s/files/1/blue1.jpg","variant_ids":[1]}]}}`))
	require.NoError(t, err)

	html := `<html><body><div data-variant="Blue">` +
		`<img src="//cdn.shopify.com/s/files/1/blue2.jpg"></div></body></html>`
	ext := extractor.New(extractor.DefaultOptions(), zap.NewNop()).Extract(html, pageURL, rec)

	res := newResolver().Resolve(pageURL, rec, ext.Candidates)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, "1", res.Variants[0].ID)
	assert.Equal(t, "Blue", res.Variants[0].Name)
	assert.Equal(t, []string{cdn("blue1.jpg"), cdn("blue2.jpg")}, res.Variants[0].Images)
}

func TestResolveZeroVariants(t *testing.T) {
	html := `<html><body>` +
		`<img src="https://shop.example.com/a.jpg">` +
		`<img src="https://shop.example.com/b.png">` +
		`<img src="https://shop.example.com/c.webp">` +
		`<img src="https://shop.example.com/logo.png">` +
		`</body></html>`
	ext := extractor.New(extractor.DefaultOptions(), zap.NewNop()).Extract(html, pageURL, nil)
	require.Nil(t, ext.Product)

	res := newResolver().Resolve(pageURL, nil, ext.Candidates)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, AllID, res.Variants[0].ID)
	assert.Equal(t, AllVariantName, res.Variants[0].Name)
	assert.Equal(t, []string{
		"https://shop.example.com/a.jpg",
		"https://shop.example.com/b.png",
		"https://shop.example.com/c.webp",
	}, res.Variants[0].Images)

	sels := Selections(res)
	require.Len(t, sels, 1, "合成的 all 变体只出现一次")
	assert.Equal(t, AllID, sels[0].ID)
	assert.Equal(t, AllLabel, sels[0].Label)
	assert.Len(t, sels[0].Images, 3)
}

func TestResolveWithoutRecord(t *testing.T) {
	cands := []extractor.Candidate{
		{Variant: "Red", URL: "/red.jpg"},
		{Variant: "Blue", URL: "/blue.jpg"},
		{Variant: "Red", URL: "/red.jpg?v=2"},
		{URL: "/shared.jpg"},
	}

	res := newResolver().Resolve(pageURL, nil, cands)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, Variant{ID: "0", Name: "Red", Images: []string{"https://shop.example.com/red.jpg"}}, res.Variants[0])
	assert.Equal(t, Variant{ID: "1", Name: "Blue", Images: []string{"https://shop.example.com/blue.jpg"}}, res.Variants[1])
	assert.Equal(t, []string{
		"https://shop.example.com/red.jpg",
		"https://shop.example.com/blue.jpg",
		"https://shop.example.com/shared.jpg",
	}, res.AllImages)
}

func TestResolveEmpty(t *testing.T) {
	res := newResolver().Resolve(pageURL, nil, nil)
	assert.Empty(t, res.Variants)
	assert.Empty(t, res.AllImages)
}

func TestSelections(t *testing.T) {
	res := &Result{
		Variants: []Variant{
			{ID: "1", Name: "Blue", Images: []string{"a", "b"}},
			{ID: "2", Name: "Red"},
		},
		AllImages: []string{"a", "b", "c"},
	}

	sels := Selections(res)
	require.Len(t, sels, 3)
	assert.Equal(t, AllLabel, sels[0].Label)
	assert.Equal(t, "Blue (2 images)", sels[1].Label)

	imgs, err := Select(res, "")
	require.NoError(t, err)
	assert.Len(t, imgs, 3)

	imgs, err = Select(res, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, imgs)

	imgs, err = Select(res, "Blue")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, imgs)

	_, err = Select(res, "2")
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = Select(res, "42")
	assert.ErrorIs(t, err, ErrUnknownSelection)
}
