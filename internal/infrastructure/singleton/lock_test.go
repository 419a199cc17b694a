package singleton

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := l.Addr().String()
	l.Close()
	return port
}

func TestCheckAndLock_PortAvailable(t *testing.T) {
	port := freePort(t)

	listener, err := CheckAndLock(port)
	require.NoError(t, err)
	require.NotNil(t, listener)
	listener.Close()
}

func TestCheckAndLock_PortHeldByUnresponsiveProcess(t *testing.T) {
	// 占用端口但不响应 /health
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()

	listener, err := CheckAndLock(l.Addr().String())
	assert.Error(t, err)
	assert.Nil(t, listener)
	assert.Contains(t, err.Error(), "unresponsive")
}

func TestCheckAndLock_HealthyInstanceRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	port := server.URL[strings.LastIndex(server.URL, ":"):]

	listener, err := CheckAndLock(port)
	require.NoError(t, err)
	assert.Nil(t, listener, "healthy instance should make the caller exit")
}

func TestIsAddrInUse(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()

	_, err = net.Listen("tcp", l.Addr().String())
	assert.True(t, isAddrInUse(err))

	_, err = net.Listen("tcp", "invalid")
	assert.False(t, isAddrInUse(err))
}

func TestProbeHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		port := server.URL[strings.LastIndex(server.URL, ":"):]
		assert.True(t, probeHealth(port))
	})

	t.Run("unhealthy status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		port := server.URL[strings.LastIndex(server.URL, ":"):]
		assert.False(t, probeHealth(port))
	})

	t.Run("nothing listening", func(t *testing.T) {
		assert.False(t, probeHealth(freePort(t)))
	})
}
