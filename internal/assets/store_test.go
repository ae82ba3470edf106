// internal/assets/store_test.go
package assets

import (
	"context"
	"strings"
	"testing"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
)

// 未配置凭证时不上传，返回确定性的占位URL
func TestQiniuStoreDemoMode(t *testing.T) {
	store := NewQiniuStore(config.StorageConfig{})
	if !store.IsDemoMode() {
		t.Fatal("空凭证应进入演示模式")
	}

	url, err := store.Put(context.Background(), []byte("data"), "scene_1")
	if err != nil {
		t.Fatalf("演示写入失败: %v", err)
	}
	if !strings.Contains(url, "scene_1") {
		t.Errorf("占位URL应包含名称提示: %q", url)
	}

	again, _ := store.Put(context.Background(), []byte("other"), "scene_1")
	if again != url {
		t.Errorf("演示URL应是确定性的: %q != %q", again, url)
	}
}

// base64写入接受裸编码与 data URI 两种形式
func TestPutBase64DemoMode(t *testing.T) {
	store := NewQiniuStore(config.StorageConfig{})
	ctx := context.Background()

	plain, err := store.PutBase64(ctx, "aGVsbG8=", "audio_scene_1")
	if err != nil {
		t.Fatalf("裸base64写入失败: %v", err)
	}
	withPrefix, err := store.PutBase64(ctx, "data:image/png;base64,aGVsbG8=", "audio_scene_1")
	if err != nil {
		t.Fatalf("data URI写入失败: %v", err)
	}
	if plain != withPrefix {
		t.Errorf("两种形式应得到同一URL: %q != %q", plain, withPrefix)
	}
}

// 编码非法时报错而不是静默写入坏数据
func TestPutBase64Invalid(t *testing.T) {
	store := NewQiniuStore(config.StorageConfig{AccessKey: "ak", SecretKey: "sk", Bucket: "b", Domain: "cdn.test"})
	if _, err := store.PutBase64(context.Background(), "不是base64!!!", "x"); err == nil {
		t.Error("非法base64应报错")
	}
}
