package ingest

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

// getEncoding 获取 cl100k_base 分词器（进程内单例）
// 使用离线加载器，避免首次调用时的网络下载
func getEncoding() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoding, encodingErr
}

// CountTokens 统计文本的 token 数
func CountTokens(text string) (int, error) {
	enc, err := getEncoding()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// EncodeTokens 将文本编码为 token 序列
func EncodeTokens(text string) ([]int, error) {
	enc, err := getEncoding()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

// DecodeTokens 将 token 序列还原为文本
func DecodeTokens(tokens []int) (string, error) {
	enc, err := getEncoding()
	if err != nil {
		return "", err
	}
	return enc.Decode(tokens), nil
}
