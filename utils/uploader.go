package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const fileMetadataTTL = 24 * time.Hour

// UploadConfig 上传配置
type UploadConfig struct {
	MaxFileSize    int64    // 最大文件大小（字节）
	AllowedFormats []string // 允许的扩展名，不含点
	UploadPath     string   // 保存目录
	PublicPrefix   string   // 对外访问前缀
}

// UploadResult 上传结果
type UploadResult struct {
	URL      string `json:"url"`
	FileSize int64  `json:"file_size"`
	FileName string `json:"file_name"`
}

// FileUploader 文件上传器
type FileUploader struct {
	config *UploadConfig
	rdb    *redis.Client
}

// NewFileUploader 创建文件上传器实例，rdb 可为 nil
func NewFileUploader(cfg *UploadConfig, rdb *redis.Client) *FileUploader {
	return &FileUploader{config: cfg, rdb: rdb}
}

// UploadFile 校验并保存表单中的单个文件
func (fu *FileUploader) UploadFile(c *gin.Context, fieldName string) (*UploadResult, error) {
	file, err := c.FormFile(fieldName)
	if err != nil {
		return nil, InvalidInput(fmt.Sprintf("file field %q is required", fieldName))
	}

	// 验证文件大小
	if file.Size > fu.config.MaxFileSize {
		return nil, InvalidInput(fmt.Sprintf("file size exceeds maximum allowed size of %d bytes", fu.config.MaxFileSize))
	}

	// 验证文件格式
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !fu.isAllowedFormat(ext) {
		return nil, InvalidInput(fmt.Sprintf("file format %q is not allowed", ext))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	fileName := generateFileName(ext)
	if err := os.MkdirAll(fu.config.UploadPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(fu.config.UploadPath, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	result := &UploadResult{
		URL:      fu.config.PublicPrefix + "/" + fileName,
		FileSize: file.Size,
		FileName: fileName,
	}
	fu.cacheFileMetadata(c.Request.Context(), fileName, file.Filename, result)
	return result, nil
}

func fileMetadataKey(fileName string) string {
	return fmt.Sprintf("file:metadata:%s", fileName)
}

// cacheFileMetadata 缓存文件元数据到Redis
func (fu *FileUploader) cacheFileMetadata(ctx context.Context, fileName, original string, result *UploadResult) {
	if fu.rdb == nil {
		return
	}
	key := fileMetadataKey(fileName)
	fu.rdb.HSet(ctx, key, map[string]interface{}{
		"url":           result.URL,
		"file_size":     result.FileSize,
		"original_name": original,
		"cached_at":     time.Now().Unix(),
	})
	fu.rdb.Expire(ctx, key, fileMetadataTTL)
}

// GetFileMetadata 从Redis获取文件元数据
func (fu *FileUploader) GetFileMetadata(ctx context.Context, fileName string) (map[string]string, error) {
	if fu.rdb == nil {
		return nil, fmt.Errorf("redis not available")
	}
	return fu.rdb.HGetAll(ctx, fileMetadataKey(fileName)).Result()
}

// DeleteFile 删除文件及其元数据
func (fu *FileUploader) DeleteFile(ctx context.Context, fileName string) error {
	if err := os.Remove(filepath.Join(fu.config.UploadPath, filepath.Base(fileName))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if fu.rdb != nil {
		fu.rdb.Del(ctx, fileMetadataKey(fileName))
	}
	return nil
}

// isAllowedFormat 检查文件格式是否允许
func (fu *FileUploader) isAllowedFormat(ext string) bool {
	for _, allowed := range fu.config.AllowedFormats {
		if strings.EqualFold(ext, strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

// generateFileName 32位随机名加扩展名，不超过封面字段长度
func generateFileName(ext string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
}
