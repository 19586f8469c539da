package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversToUserGroup(t *testing.T) {
	hub := NewHub(time.Second, time.Second, zap.NewNop())
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Members(UserGroup(userID)) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToUser(context.Background(), userID, "Process_Terminated", map[string]string{"reason": "completed"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "Process_Terminated", env.Event)
	require.JSONEq(t, `{"reason":"completed"}`, string(env.Payload))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Members(UserGroup(userID)) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseSendsGoingAway(t *testing.T) {
	hub := NewHub(time.Second, time.Second, zap.NewNop())
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Members(UserGroup(userID)) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	require.Equal(t, 0, hub.Members(UserGroup(userID)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	hub := NewHub(time.Second, time.Second, zap.NewNop()).WithAllowedOrigins([]string{"https://app.example/"})
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://APP.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHubSendToEmptyGroup(t *testing.T) {
	hub := NewHub(0, 0, zap.NewNop())
	require.NoError(t, hub.SendToGroup(context.Background(), "charger:x", "evt", nil))
}

func TestPushClientPostsToGateway(t *testing.T) {
	var mu sync.Mutex
	var got pushMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	userID := uuid.New()
	push := NewPushClient(srv.URL, "server-key", func(ctx context.Context, id uuid.UUID) (string, error) {
		require.Equal(t, userID, id)
		return "device-token", nil
	}, zap.NewNop())

	require.NoError(t, push.SendToUser(context.Background(), userID, "ChargingRequest_Received", map[string]int{"kw": 20}))
	push.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "device-token", got.To)
	require.Equal(t, "ChargingRequest_Received", got.Data.Event)
	require.Equal(t, "key=server-key", auth)
}

func TestPushClientSkipsUsersWithoutToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	push := NewPushClient(srv.URL, "", func(ctx context.Context, id uuid.UUID) (string, error) {
		return "", nil
	}, zap.NewNop())

	require.NoError(t, push.SendToUser(context.Background(), uuid.New(), "evt", nil))
	push.Wait()
	require.False(t, called)
}

type failingDispatcher struct{ calls int }

func (f *failingDispatcher) SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	f.calls++
	return errors.New("down")
}

func (f *failingDispatcher) SendToGroup(ctx context.Context, groupKey string, eventType string, payload interface{}) error {
	f.calls++
	return errors.New("down")
}

func TestFanoutSwallowsChannelErrors(t *testing.T) {
	a, b := &failingDispatcher{}, &failingDispatcher{}
	f := NewFanout(zap.NewNop(), a, nil, b)

	require.NoError(t, f.SendToUser(context.Background(), uuid.New(), "evt", nil))
	require.NoError(t, f.SendToGroup(context.Background(), "g", "evt", nil))
	require.Equal(t, 2, a.calls)
	require.Equal(t, 2, b.calls)
}
