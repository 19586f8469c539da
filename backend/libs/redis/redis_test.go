package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRedisClientRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"empty addr", Options{Addr: "  "}},
		{"negative db", Options{Addr: "localhost:6379", DB: -1}},
		{"negative pool", Options{Addr: "localhost:6379", PoolSize: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewRedisClient(context.Background(), tc.opts)
			require.Error(t, err)
			require.Nil(t, client)
		})
	}
}

func TestNewRedisClientHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	require.Nil(t, client)
}

func TestOrDefault(t *testing.T) {
	require.Equal(t, defaultReadTimeout, orDefault(0, defaultReadTimeout))
	require.Equal(t, time.Second, orDefault(time.Second, defaultReadTimeout))
}
