package service

import (
	"errors"

	"github.com/newsflow/variantpad/internal/processor"
)

var (
	// ErrInvalidInput 输入不合法（空地址、非 http(s) 地址）
	ErrInvalidInput = errors.New("invalid input")
	// ErrRetrieval 页面所有抓取路由均失败
	ErrRetrieval = errors.New("failed to fetch page")
	// ErrVariantNotFound 选择的变体不存在
	ErrVariantNotFound = errors.New("variant not found")
	// ErrEmptySelection 选择的变体没有图片
	ErrEmptySelection = errors.New("no images in selection")
	// ErrNoImages 页面上没有找到图片
	ErrNoImages = processor.ErrNoImages
	// ErrBusy 已有批处理在运行
	ErrBusy = processor.ErrBatchInFlight
)
