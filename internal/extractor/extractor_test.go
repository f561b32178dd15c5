package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const swatchHTML = `<div class="swatch" data-variant="Red">` +
	`<img src="//cdn.shopify.com/s/files/1/red-1.jpg">` +
	`<img src="//cdn.shopify.com/s/files/1/red-2.jpg">` +
	`<img src="//cdn.shopify.com/s/files/1/red-3.jpg">` +
	"</div>\n" +
	`<div class="swatch" data-variant="Blue">` +
	`<img src="//cdn.shopify.com/s/files/1/blue-1.jpg">` +
	`<img src="//cdn.shopify.com/s/files/1/blue-2.jpg">` +
	`<img src="//cdn.shopify.com/s/files/1/blue-3.jpg">` +
	"</div>"

func urlsFor(cands []Candidate, variant string) []string {
	var out []string
	for _, c := range cands {
		if c.Variant == variant {
			out = append(out, c.URL)
		}
	}
	return out
}

func TestTokenizeOffsets(t *testing.T) {
	src := `<p>hi</p><img data-variant='Blue' src=x.jpg>`
	events := Tokenize(src)
	require.Len(t, events, 3)

	assert.Equal(t, StartTag, events[0].Kind)
	assert.Equal(t, 0, events[0].Offset)
	assert.Equal(t, EndTag, events[1].Kind)
	assert.Equal(t, "p", events[1].Tag)

	img := events[2]
	assert.Equal(t, "img", img.Tag)
	assert.Equal(t, 9, img.Offset)
	assert.Equal(t, len(src), img.End)
	require.Len(t, img.Attrs, 2)
	assert.Equal(t, Attr{Key: "data-variant", Val: "Blue", Offset: 14}, img.Attrs[0])
	assert.Equal(t, Attr{Key: "src", Val: "x.jpg", Offset: 34}, img.Attrs[1])
}

func TestMarkersQuotingStyles(t *testing.T) {
	src := `<a data-variant="Red"></a><b data-variant='Blue'></b><i data-variant=Green></i><u data-variant="Red"></u><s data-variant="  "></s>`
	doc := NewDocument(src)

	var names []string
	for _, m := range doc.Markers("data-variant") {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Red", "Blue", "Green", "Red"}, names)

	names = names[:0]
	for _, m := range doc.FirstMarkers("data-variant") {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Red", "Blue", "Green"}, names)
}

func TestScanForwardStopsAtNextMarker(t *testing.T) {
	doc := NewDocument(swatchHTML)
	cands := ScanForward(doc, DefaultOptions())

	assert.Equal(t, []string{
		"//cdn.shopify.com/s/files/1/red-1.jpg",
		"//cdn.shopify.com/s/files/1/red-2.jpg",
		"//cdn.shopify.com/s/files/1/red-3.jpg",
	}, urlsFor(cands, "Red"))
	assert.Equal(t, []string{
		"//cdn.shopify.com/s/files/1/blue-1.jpg",
		"//cdn.shopify.com/s/files/1/blue-2.jpg",
		"//cdn.shopify.com/s/files/1/blue-3.jpg",
	}, urlsFor(cands, "Blue"))
}

func TestScanForwardLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<div data-variant="Jet">`)
	for i := 0; i < 80; i++ {
		b.WriteString(`<img src="/j.png">`)
	}
	b.WriteString(`</div>`)

	opts := DefaultOptions()
	opts.ForwardLimit = 5
	cands := ScanForward(NewDocument(b.String()), opts)
	assert.Len(t, cands, 5)
}

func TestScanElementContent(t *testing.T) {
	cands := ScanElementContent(NewDocument(swatchHTML), DefaultOptions())

	assert.Len(t, urlsFor(cands, "Red"), 3)
	assert.Len(t, urlsFor(cands, "Blue"), 3)
	assert.NotContains(t, urlsFor(cands, "Red"), "//cdn.shopify.com/s/files/1/blue-1.jpg")
}

func TestScanElementContentRequiresClosingTag(t *testing.T) {
	src := `<div data-variant="Red"><img src="/red.jpg">` + strings.Repeat("<br>", 1000) + `</div>`
	cands := ScanElementContent(NewDocument(src), DefaultOptions())
	assert.Empty(t, cands)
}

func TestScanProximityWindow(t *testing.T) {
	src := `<img src="/before.jpg">` +
		`<div data-variant="Sand">` +
		`<a href="/zoom/sand-large.png">zoom</a>` +
		`<span style="background-image: url('/sand-bg.webp')"></span>` +
		`<img srcset="/sand-400.jpg 400w, /sand-800.jpg 800w">` +
		`</div>` +
		strings.Repeat(" ", 2100) +
		`<img src="/far-away.jpg">`

	cands := ScanProximity(NewDocument(src), DefaultOptions())
	assert.Equal(t, []string{
		"/before.jpg",
		"/zoom/sand-large.png",
		"/sand-bg.webp",
		"/sand-400.jpg",
		"/sand-800.jpg",
	}, urlsFor(cands, "Sand"))
}

func TestScanInline(t *testing.T) {
	src := `<img src="/a.jpg" data-zoom-src="/a-zoom.jpg">` +
		`<div data-src="//cdn.shopify.com/b.png"></div>` +
		`<source srcset="/c-1.webp 1x, /c-2.webp 2x">` +
		`<script src="/app.js"></script>` +
		`<div data-product-image="/d.gif" data-image="/e.jpeg"></div>`

	cands := ScanInline(NewDocument(src), DefaultOptions())
	var urls []string
	for _, c := range cands {
		assert.False(t, c.Scoped())
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{"/a.jpg", "/a-zoom.jpg", "//cdn.shopify.com/b.png", "/c-1.webp", "/c-2.webp", "/d.gif", "/e.jpeg"}, urls)
}

func TestScanCDNAndMalformedStructuredData(t *testing.T) {
	src := `<html><head>
<script type="application/ld+json">{"@type": "Product", "image": [</script>
<script>var images = ["https:\/\/cdn.shopify.com\/s\/files\/1\/one.jpg?v=1"];</script>
</head><body>
<p>https://cdn.shopify.com/s/files/1/two.png and https://other.example.com/three.png</p>
</body></html>`

	doc := NewDocument(src)
	assert.Empty(t, ScanStructuredData(doc, DefaultOptions()))

	cands := ScanCDN(doc, DefaultOptions())
	require.Len(t, cands, 2)
	assert.Equal(t, "https://cdn.shopify.com/s/files/1/one.jpg?v=1", cands[0].URL)
	assert.Equal(t, "https://cdn.shopify.com/s/files/1/two.png", cands[1].URL)
}

func TestScanStructuredData(t *testing.T) {
	src := `<script type="application/ld+json">
{"@type": "Product", "name": "Bag", "image": ["https://x.test/1.jpg", "https://x.test/2.jpg?w=1"],
 "offers": {"url": "https://x.test/bag", "seller": {"logo": "https://x.test/seller.png"}}}
</script>`

	cands := ScanStructuredData(NewDocument(src), DefaultOptions())
	var urls []string
	for _, c := range cands {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{"https://x.test/1.jpg", "https://x.test/2.jpg?w=1", "https://x.test/seller.png"}, urls)
}

func TestScanProductJSON(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		wantNil bool
		title   string
	}{
		{
			name:  "product-json 脚本",
			html:  `<script id="product-json" type="application/json">{"id":1,"variants":[{"id":1,"title":"Blue"}]}</script>`,
			title: "Blue",
		},
		{
			name: "第一个模式解析失败时尝试后续模式",
			html: `<script id="product-json">{broken</script>` +
				`<script>window.__INITIAL_STATE__ = {"product":{"variants":[{"id":2,"title":"Red"}]}};</script>`,
			title: "Red",
		},
		{
			name:    "没有内嵌 JSON",
			html:    `<div data-variant="Blue"></div>`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ScanProductJSON(NewDocument(tt.html), DefaultOptions())
			if tt.wantNil {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.title, rec.Variants[0].Title)
		})
	}
}

func TestExtract(t *testing.T) {
	src := `<html><head><title>Halfday Duffel</title>
<script id="product-json">{"variants":[{"id":1,"title":"Red"},{"id":2,"title":"Blue"}]}</script>
</head><body>` + swatchHTML + `</body></html>`

	e := New(DefaultOptions(), zap.NewNop())
	res := e.Extract(src, "https://shop.example.com/products/duffel", nil)

	require.NotNil(t, res.Product)
	assert.Equal(t, ProductEmbedded, res.ProductSource)
	assert.Equal(t, []string{"Red", "Blue"}, res.Markers)
	assert.Equal(t, "Halfday Duffel", res.Metadata.Title)
	assert.NotEmpty(t, urlsFor(res.Candidates, ""))
	assert.NotEmpty(t, urlsFor(res.Candidates, "Red"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Black & White", SanitizeName("Black &amp; White"))
	assert.Equal(t, "Jet", SanitizeName("<b>Jet</b>"))
	assert.Equal(t, "Sand Dune", SanitizeName("  Sand \n Dune "))
}
