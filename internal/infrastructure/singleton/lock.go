package singleton

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	// DefaultPort 默认监听端口
	DefaultPort = ":18080"
	// healthProbeTimeout 对已有实例做健康探测的超时
	healthProbeTimeout = 2 * time.Second
)

// CheckAndLock 尝试占用 HTTP 端口作为单实例锁
// 端口空闲时返回 listener（调用者关闭后交给 HTTP 服务器监听）
// 已有健康实例在运行时返回 (nil, nil)，调用者应直接退出
// 端口被占用但探测不到健康实例时返回错误
func CheckAndLock(port string) (net.Listener, error) {
	listener, err := net.Listen("tcp", port)
	if err == nil {
		return listener, nil
	}

	if !isAddrInUse(err) {
		return nil, fmt.Errorf("failed to listen on %s: %w", port, err)
	}

	if probeHealth(port) {
		return nil, nil
	}
	return nil, fmt.Errorf("port %s is held by an unresponsive process", port)
}

// isAddrInUse 判断监听失败是否因为端口已被占用
func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}

	// Windows 下 errno 是 WSAEADDRINUSE (10048)，syscall 包没有跨平台常量
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == 10048
	}
	return false
}

// probeHealth 请求已占用端口的 /health，探测是否为本服务的健康实例
func probeHealth(port string) bool {
	client := &http.Client{Timeout: healthProbeTimeout}

	resp, err := client.Get(fmt.Sprintf("http://localhost%s/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
