package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateRequestID 生成请求 ID
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

// GenerateNonce 生成 256 位随机验证令牌（hex 编码）
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken 对令牌做 SHA256，存储时只保存哈希
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// MaskToken 遮蔽令牌，用于日志
func MaskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
