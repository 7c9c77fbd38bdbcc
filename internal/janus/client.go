// Package janus is a transaction-correlated client for the Janus WebRTC gateway
// WebSocket API. One Client multiplexes every room and listener over a single connection.
package janus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"livesignal/backend/internal/config"
	"livesignal/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds every Send. Defaults to config.DefaultGatewayWait.
	Timeout time.Duration
	Header  http.Header
}

type pendingTx struct {
	ch    chan *Response
	async bool
}

// Client owns the gateway connection and the pending transaction map.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingTx
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the gateway and starts the reader goroutine.
func Dial(ctx context.Context, url string, opts Options, log *zap.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultGatewayWait
	}
	dialer := websocket.Dialer{
		Subprotocols:     []string{config.JanusSubprotocol},
		HandshakeTimeout: opts.Timeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrGatewayUnreachable, url, err)
	}

	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		log:     log.Named("janus"),
		pending: make(map[string]*pendingTx),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send stamps req with a fresh transaction id, writes it and waits for the
// matching answer. For async plugin requests the ack is skipped and the event
// carrying the same transaction resolves the call.
//
// On a gateway failure the response is returned together with a *ProtocolError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	req.Transaction = uuid.NewString()
	tx := &pendingTx{
		ch:    make(chan *Response, 1),
		async: req.Body != nil && req.Body.Async(),
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrGatewayUnreachable
	}
	c.pending[req.Transaction] = tx
	c.mu.Unlock()
	defer c.forget(req.Transaction)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.write(req); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrGatewayUnreachable, err)
	}

	select {
	case resp := <-tx.ch:
		return resp, resp.Err()
	case <-c.closed:
		return nil, ErrGatewayUnreachable
	case <-ctx.Done():
		c.log.Warn("gateway call timed out",
			zap.String("janus", req.Janus),
			zap.String("transaction", req.Transaction),
			zap.Int64("session_id", req.SessionID))
		return nil, fmt.Errorf("%w: %w", ErrGatewayTimeout, ctx.Err())
	}
}

// Done is closed once the gateway connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Close shuts the connection; pending calls fail with ErrGatewayUnreachable.
func (c *Client) Close() error {
	c.fail(ErrGatewayUnreachable)
	return c.conn.Close()
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(req)
}

func (c *Client) forget(transaction string) {
	c.mu.Lock()
	delete(c.pending, transaction)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Warn("undecodable gateway frame", zap.Error(err))
			continue
		}
		c.dispatch(&resp)
	}
}

func (c *Client) dispatch(resp *Response) {
	if resp.Transaction == "" {
		// webrtcup, media, hangup, slowlink and friends
		c.log.Debug("gateway notification", zap.String("janus", resp.Janus), zap.Int64("session_id", resp.SessionID))
		return
	}

	c.mu.Lock()
	tx, ok := c.pending[resp.Transaction]
	if ok && tx.async && resp.Janus == "ack" {
		c.mu.Unlock()
		return
	}
	if ok {
		delete(c.pending, resp.Transaction)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("answer for unknown transaction", zap.String("transaction", resp.Transaction))
		return
	}
	tx.ch <- resp
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closed)
		if !errors.Is(err, ErrGatewayUnreachable) {
			c.log.Error("gateway connection lost", zap.Error(err))
		}
	})
}

// CreateSession opens a gateway session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (int64, error) {
	resp, err := c.Send(ctx, Request{Janus: verbCreate})
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return resp.Data.ID, nil
}

// AttachPlugin binds a new handle on sessionID to plugin.
func (c *Client) AttachPlugin(ctx context.Context, sessionID int64, plugin string) (int64, error) {
	resp, err := c.Send(ctx, Request{Janus: verbAttach, SessionID: sessionID, Plugin: plugin})
	if err != nil {
		return 0, fmt.Errorf("attach %s: %w", plugin, err)
	}
	return resp.Data.ID, nil
}

// Message sends a plugin message on a handle.
func (c *Client) Message(ctx context.Context, sessionID, handleID int64, body PluginBody, jsep *models.JSEP) (*Response, error) {
	resp, err := c.Send(ctx, Request{
		Janus:     verbMessage,
		SessionID: sessionID,
		HandleID:  handleID,
		Body:      body,
		Jsep:      jsep,
	})
	if err != nil {
		return resp, fmt.Errorf("%s: %w", body.RequestName(), err)
	}
	return resp, nil
}

func (c *Client) KeepAlive(ctx context.Context, sessionID int64) error {
	if _, err := c.Send(ctx, Request{Janus: verbKeepAlive, SessionID: sessionID}); err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	return nil
}

// DestroySession tears down a gateway session and all its handles.
func (c *Client) DestroySession(ctx context.Context, sessionID int64) error {
	if _, err := c.Send(ctx, Request{Janus: verbDestroy, SessionID: sessionID}); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
