package utils

import (
	"math"
	"strconv"
	"strings"
)

// Page 分页结果
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
}

// NewPage 组装分页结果
func NewPage[T any](items []T, total int64, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return Page[T]{Items: items, Total: total, Page: page, PerPage: perPage, Pages: pages}
}

// Offset 计算偏移量
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}

// ParseIDList 解析逗号分隔的ID列表，忽略非法项
func ParseIDList(csv string) []uint {
	var ids []uint
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// Round2 金额保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Floor2 向下保留两位小数
func Floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}
