package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServerServesAndShutsDown(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), handler, zap.NewNop(), tag("outer"), tag("inner")).
		WithShutdownTimeout(time.Second)
	hookRan := make(chan struct{})
	srv.OnShutdown(func() { close(hookRan) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, []string{"outer", "inner"}, order)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-hookRan:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook not called")
	}
}

func TestServerRunFailsOnBadAddress(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", http.NotFoundHandler(), zap.NewNop())
	require.Error(t, srv.Run(context.Background()))
}
