package client

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raknet-go/engine"
	"raknet-go/server"
)

func startEchoServer(t *testing.T, statusBytes []byte) (addr string, closeFn func()) {
	t.Helper()
	ln, err := server.Listen("127.0.0.1:0", func(*engine.Engine) ([]byte, error) {
		return statusBytes, nil
	}, func(e *engine.Engine) {
		go func() {
			for {
				pkt, err := e.Read(context.Background())
				if err != nil {
					return
				}
				_ = e.Write(pkt)
			}
		}()
	})
	require.NoError(t, err)
	return ln.Addr().String(), func() { _ = ln.Close() }
}

func TestClientStatus(t *testing.T) {
	addr, closeFn := startEchoServer(t, []byte("demo status"))
	defer closeFn()

	host, port := splitHostPort(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := Status(ctx, host, port)
	require.NoError(t, err)
	assert.Equal(t, []byte("demo status"), got)
}

func TestClientLogin(t *testing.T) {
	addr, closeFn := startEchoServer(t, nil)
	defer closeFn()

	host, port := splitHostPort(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Login(ctx, host, port)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, conn.Online())
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
