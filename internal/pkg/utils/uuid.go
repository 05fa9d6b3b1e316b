package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID v4 字符串，用于请求追踪ID
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("生成UUID失败: %w", err)
	}
	return id.String(), nil
}
