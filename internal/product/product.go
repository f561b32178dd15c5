// Package product 定义店铺商品记录（变体与图片）及其宽松的 JSON 解码。
//
// 商品 JSON 来源不一：/products/<handle>.json 端点、页面内嵌脚本、
// 主题注入的全局变量。id 可能是数字也可能是字符串，图片可能是字符串
// 也可能是对象，因此各类型都实现了自己的 UnmarshalJSON。
package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoProduct JSON 中没有可识别的商品对象
var ErrNoProduct = errors.New("no product object")

// ID 商品/变体/图片标识（数字或字符串，统一为十进制字符串）
type ID string

// Present 是否有值
func (id ID) Present() bool { return id != "" }

// UnmarshalJSON 接受数字、字符串和 null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Image 商品图片
type Image struct {
	ID         ID
	Src        string
	VariantIDs []ID
}

// Shared 未关联任何变体的共享图片
func (img Image) Shared() bool { return len(img.VariantIDs) == 0 }

// TaggedWith 是否显式关联了指定变体
func (img Image) TaggedWith(id ID) bool {
	if !id.Present() {
		return false
	}
	for _, v := range img.VariantIDs {
		if v == id {
			return true
		}
	}
	return false
}

type imageJSON struct {
	ID           ID     `json:"id"`
	Src          string `json:"src"`
	URL          string `json:"url"`
	VariantIDs   []ID   `json:"variant_ids"`
	PreviewImage *struct {
		Src string `json:"src"`
	} `json:"preview_image"`
}

// UnmarshalJSON 接受字符串地址，或 {id, src|url|preview_image.src, variant_ids} 对象
func (img *Image) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*img = Image{Src: s}
		return nil
	}

	var raw imageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src := raw.Src
	if src == "" {
		src = raw.URL
	}
	if src == "" && raw.PreviewImage != nil {
		src = raw.PreviewImage.Src
	}
	*img = Image{ID: raw.ID, Src: src, VariantIDs: raw.VariantIDs}
	return nil
}

// imageRef featured_image / image 字段：字符串或带 src|url 的对象
type imageRef string

func (r *imageRef) UnmarshalJSON(data []byte) error {
	var img Image
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = ""
		return nil
	}
	if err := img.UnmarshalJSON(data); err != nil {
		// 非图片形状（如数字）视为空
		*r = ""
		return nil
	}
	*r = imageRef(img.Src)
	return nil
}

// Variant 商品变体
type Variant struct {
	ID      ID
	Title   string
	Option1 string
	Name    string
	// 指定主图 id
	ImageID ID
	// 内嵌 JSON 中直接给出的主图地址
	FeaturedImage string
}

type variantJSON struct {
	ID            ID       `json:"id"`
	Title         string   `json:"title"`
	Option1       string   `json:"option1"`
	Name          string   `json:"name"`
	ImageID       ID       `json:"image_id"`
	FeaturedImage imageRef `json:"featured_image"`
	Image         imageRef `json:"image"`
}

// UnmarshalJSON 变体解码
func (v *Variant) UnmarshalJSON(data []byte) error {
	var raw variantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	featured := string(raw.FeaturedImage)
	if featured == "" {
		featured = string(raw.Image)
	}
	*v = Variant{
		ID:            raw.ID,
		Title:         raw.Title,
		Option1:       raw.Option1,
		Name:          raw.Name,
		ImageID:       raw.ImageID,
		FeaturedImage: featured,
	}
	return nil
}

// DisplayName 显示名：title → option1 → name → "Variant N"（N 从 1 开始）
func (v *Variant) DisplayName(index int) string {
	switch {
	case v.Title != "":
		return v.Title
	case v.Option1 != "":
		return v.Option1
	case v.Name != "":
		return v.Name
	default:
		return "Variant " + strconv.Itoa(index+1)
	}
}

// Key 身份键：有 id 用 id，否则用从 0 开始的位置序号
func (v *Variant) Key(index int) string {
	if v.ID.Present() {
		return string(v.ID)
	}
	return strconv.Itoa(index)
}

// Record 商品记录
type Record struct {
	ID       ID
	Title    string
	Handle   string
	Variants []Variant
	Images   []Image
}

type recordJSON struct {
	ID       ID        `json:"id"`
	Title    string    `json:"title"`
	Handle   string    `json:"handle"`
	Variants []Variant `json:"variants"`
	Images   []Image   `json:"images"`
	Media    []Image   `json:"media"`
}

// UnmarshalJSON 商品解码，images 缺失时使用 media
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	images := raw.Images
	if len(images) == 0 {
		images = raw.Media
	}
	*r = Record{
		ID:       raw.ID,
		Title:    raw.Title,
		Handle:   raw.Handle,
		Variants: raw.Variants,
		Images:   images,
	}
	return nil
}

// ImageByID 按 id 查找图片
func (r *Record) ImageByID(id ID) (Image, bool) {
	if !id.Present() {
		return Image{}, false
	}
	for _, img := range r.Images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// SharedImages 未关联任何变体的图片
func (r *Record) SharedImages() []Image {
	var out []Image
	for _, img := range r.Images {
		if img.Shared() {
			out = append(out, img)
		}
	}
	return out
}

// Parse 解析商品 JSON：接受 {"product": {...}} 包装或裸商品对象
func Parse(data []byte) (*Record, error) {
	var envelope struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	body := data
	if len(envelope.Product) > 0 && !bytes.Equal(envelope.Product, []byte("null")) {
		body = envelope.Product
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, err
	}
	if len(rec.Variants) == 0 && len(rec.Images) == 0 {
		return nil, ErrNoProduct
	}
	return &rec, nil
}

// ParseEnvelope 只接受 {"product": {...}} 包装（.json 端点的响应格式）
func ParseEnvelope(data []byte) (*Record, error) {
	var envelope struct {
		Product *Record `json:"product"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Product == nil {
		return nil, ErrNoProduct
	}
	return envelope.Product, nil
}
