package processor

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchiveName 归档文件名
const ArchiveName = "widescreen_images.zip"

// File 处理后的文件
type File struct {
	Name string
	Data []byte
}

// OutputName 第 index 张输入图片（从 0 开始）的输出文件名
func OutputName(index int) string {
	return fmt.Sprintf("shopify_image_%d_widescreen.png", index)
}

// BuildArchive 打包为 zip
//
// PNG 已经压缩，条目使用 Store 方式写入。
func BuildArchive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()

	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
