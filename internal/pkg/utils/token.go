package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateShareToken 生成分享链接令牌
// 32 字节随机数 hex 编码为 64 个字符,碰撞概率可以忽略,不需要查库去重
func GenerateShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
