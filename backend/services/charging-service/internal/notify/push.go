package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenLookup resolves a user's push token; an empty token means the user has no device.
type TokenLookup func(ctx context.Context, userID uuid.UUID) (string, error)

// PushClient posts events to an FCM-style push gateway. Sends run in the background.
type PushClient struct {
	url       string
	serverKey string
	client    *http.Client
	lookup    TokenLookup
	logger    *zap.Logger
	wg        sync.WaitGroup
}

var _ Dispatcher = (*PushClient)(nil)

type pushMessage struct {
	To   string      `json:"to"`
	Data pushPayload `json:"data"`
}

type pushPayload struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// NewPushClient returns a push channel; an empty url disables it.
func NewPushClient(url, serverKey string, lookup TokenLookup, logger *zap.Logger) *PushClient {
	return &PushClient{
		url:       url,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 5 * time.Second},
		lookup:    lookup,
		logger:    logger,
	}
}

func (p *PushClient) SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	if p.url == "" || p.lookup == nil {
		return nil
	}
	token, err := p.lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("push: lookup token: %w", err)
	}
	if token == "" {
		return nil
	}
	return p.send(ctx, pushMessage{To: token, Data: pushPayload{Event: eventType, Payload: payload}})
}

// SendToGroup targets a gateway topic named after the group.
func (p *PushClient) SendToGroup(ctx context.Context, groupKey string, eventType string, payload interface{}) error {
	if p.url == "" {
		return nil
	}
	return p.send(ctx, pushMessage{To: "/topics/" + groupKey, Data: pushPayload{Event: eventType, Payload: payload}})
}

func (p *PushClient) send(ctx context.Context, msg pushMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, p.url, bytes.NewReader(data))
		if err != nil {
			p.logger.Warn("push request build failed", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if p.serverKey != "" {
			req.Header.Set("Authorization", "key="+p.serverKey)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.Warn("push delivery failed", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			p.logger.Warn("push gateway returned non-success", zap.Int("status", resp.StatusCode))
		}
	}()
	return nil
}

// Wait blocks until in-flight sends finish.
func (p *PushClient) Wait() {
	p.wg.Wait()
}
