package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acssjr/examscan/internal/models"
)

// Stream message types.
const (
	streamTypeStatus = "status"
	streamTypePing   = "ping"
)

// streamMessage is one frame of the status stream.
type streamMessage struct {
	Type string          `json:"type"`
	Jobs json.RawMessage `json:"jobs,omitempty"`
}

// StreamStatus subscribes to push-based status updates for a project scope
// over a websocket. Each received snapshot carries the same payload shape
// as QueryStatus, so the tracker's state machine is driven identically by
// poll and push transports. onSnapshot is invoked per snapshot; return an
// error from it to end the stream. Blocks until the stream ends or ctx is
// cancelled.
func (c *Client) StreamStatus(ctx context.Context, scope string, onSnapshot func([]models.JobRecord) error) error {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/status/stream")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if scope != "" {
		q := u.Query()
		q.Set("scope", scope)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case streamTypeStatus:
			var payloads []jobPayload
			if err := json.Unmarshal(msg.Jobs, &payloads); err != nil {
				return fmt.Errorf("unmarshal status payload: %w", err)
			}
			if err := onSnapshot(decodeJobs(payloads)); err != nil {
				return err
			}

		case streamTypePing:
			continue

		default:
			// Ignore unknown message types
			continue
		}
	}
}
