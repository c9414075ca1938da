package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache 缓存通用接口
type Cache interface {
	// Set 在缓存中设置一个值,并指定过期时间
	// value 应该是一个可以被JSON封送的结构体或指向结构体的指针
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get 从缓存中检索一个值,并将其解编组到目标接口
	// target 应该是一个指针,指向希望解编组成的类型
	Get(ctx context.Context, key string, target any) error

	// Del 删除一个或多个key
	Del(ctx context.Context, keys ...string) error

	// Exists 检查key是否存在
	Exists(ctx context.Context, key string) (bool, error)

	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// GenerateFileMetadataKey 单文件元数据缓存键
func GenerateFileMetadataKey(fileID uint64) string {
	return fmt.Sprintf("file:metadata:%d", fileID)
}

// GenerateFolderMetadataKey 单文件夹元数据缓存键
func GenerateFolderMetadataKey(folderID uint64) string {
	return fmt.Sprintf("folder:metadata:%d", folderID)
}
