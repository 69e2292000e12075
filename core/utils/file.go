package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// ErrTooLarge 内容超过允许的最大字节数
var ErrTooLarge = errors.New("content exceeds size limit")

// FetchBytes 下载 URL 内容到内存，最多 maxBytes 字节。
// 支持 http(s) 与 file:// 两种地址。
func FetchBytes(ctx context.Context, rawURL string, maxBytes int) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("解析地址失败: %w", err)
	}

	switch u.Scheme {
	case "file":
		return ReadFileLimited(u.Path, maxBytes)
	case "http", "https":
	default:
		return nil, fmt.Errorf("不支持的地址协议: %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	return readLimited(resp.Body, maxBytes)
}

// ReadFileLimited 读取本地文件，最多 maxBytes 字节
func ReadFileLimited(path string, maxBytes int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	return readLimited(f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("读取内容失败: %w", err)
	}
	if len(data) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
