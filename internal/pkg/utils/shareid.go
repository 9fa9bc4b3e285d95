package utils

import (
	"crypto/rand"
	"fmt"
)

// shareIDAlphabet URL-safe 字符集，64 个字符正好能整除随机字节取模，不会引入偏差
const shareIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// ShareIDLength 分享 ID 的长度，64^10 约 1.1e18 种组合，足够不可猜测
const ShareIDLength = 10

// GenerateShareID 生成下载链接中的公开随机 token
// 它只出现在分享 URL 中，与数据库自增 ID 和对象存储 key 都没有关系
func GenerateShareID() (string, error) {
	buf := make([]byte, ShareIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机分享ID失败: %w", err)
	}
	for i, b := range buf {
		buf[i] = shareIDAlphabet[int(b)%len(shareIDAlphabet)]
	}
	return string(buf), nil
}
