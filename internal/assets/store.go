// internal/assets/store.go
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// Store 资产存储：写入字节，返回可公开访问的URL
type Store interface {
	Put(ctx context.Context, data []byte, nameHint string) (string, error)
	PutBase64(ctx context.Context, encoded string, nameHint string) (string, error)
}

// QiniuStore 七牛云对象存储实现
// AccessKey 为空时进入演示模式：不上传，返回确定性的占位图URL
type QiniuStore struct {
	cfg    config.StorageConfig
	logger *utils.Logger
}

// NewQiniuStore 创建资产存储
func NewQiniuStore(cfg config.StorageConfig) *QiniuStore {
	return &QiniuStore{
		cfg:    cfg,
		logger: utils.GetLogger(),
	}
}

// IsDemoMode 未配置存储凭证
func (s *QiniuStore) IsDemoMode() bool {
	return s.cfg.AccessKey == "" || s.cfg.SecretKey == ""
}

// Put 上传字节并返回公开URL
func (s *QiniuStore) Put(ctx context.Context, data []byte, nameHint string) (string, error) {
	if s.IsDemoMode() {
		return fmt.Sprintf("https://via.placeholder.com/1024x1024.png?text=%s", nameHint), nil
	}

	key := fmt.Sprintf("%s_%d_%s.png", nameHint, time.Now().UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", ""))

	mac := qbox.NewMac(s.cfg.AccessKey, s.cfg.SecretKey)
	putPolicy := storage.PutPolicy{Scope: s.cfg.Bucket}
	upToken := putPolicy.UploadToken(mac)

	uploader := storage.NewFormUploader(&storage.Config{})
	ret := storage.PutRet{}
	err := uploader.Put(ctx, &ret, upToken, key, bytes.NewReader(data), int64(len(data)), &storage.PutExtra{})
	if err != nil {
		return "", apperrors.NewProviderError("上传资产失败: "+nameHint, err)
	}

	url := fmt.Sprintf("https://%s/%s", s.cfg.Domain, ret.Key)
	s.logger.Info("资产上传完成", map[string]interface{}{
		"key": ret.Key,
		"url": url,
	})
	return url, nil
}

// PutBase64 上传base64编码的资产，兼容 data URI 前缀
func (s *QiniuStore) PutBase64(ctx context.Context, encoded string, nameHint string) (string, error) {
	// 去掉 "data:image/png;base64," 这类前缀
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.Contains(encoded[:idx], ";base64") {
		encoded = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperrors.NewValidationError("base64解码失败: "+nameHint, err)
	}
	return s.Put(ctx, data, nameHint)
}
