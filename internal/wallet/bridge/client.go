// Package bridge implements wallet.Provider over a JSON-RPC 2.0 websocket to
// a wallet bridge (a browser extension relay or a WalletConnect-style relay).
//
// Requests carry an id and are answered by a response with the same id.
// Messages without an id are EIP-1193 notifications whose method is the
// event name:
//
//	{"jsonrpc":"2.0","method":"accountsChanged","params":["0xab..."]}
//	{"jsonrpc":"2.0","method":"chainChanged","params":"0x89"}
//	{"jsonrpc":"2.0","method":"connect","params":{"chainId":"0x1"}}
//	{"jsonrpc":"2.0","method":"disconnect","params":{"code":4900,"message":"..."}}
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"tradegate/internal/wallet"
)

const (
	methodRequestAccounts = "eth_requestAccounts"
	methodAccounts        = "eth_accounts"

	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// ErrClosed is returned for calls made after Close.
var ErrClosed = errors.New("wallet bridge closed")

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	result gjson.Result
	err    error
}

// Client is a wallet.Provider backed by a bridge connection.
type Client struct {
	wallet.Emitter

	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration
	pingInterval time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	closing bool
	err     error

	done chan struct{}
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPingInterval keeps idle connections alive through proxies. Zero
// disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Dial connects to the bridge at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial wallet bridge: %w: %w", wallet.ErrProviderUnavailable, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection and starts reading from it.
func New(conn *websocket.Conn, opts ...Option) *Client {
	c := &Client{
		conn:         conn,
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
		pending:      make(map[uint64]chan response),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	if c.pingInterval > 0 {
		go c.pingLoop()
	}
	return c
}

// RequestAccounts asks the wallet for account access, prompting the user.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	res, err := c.call(ctx, methodRequestAccounts)
	if err != nil {
		return nil, err
	}
	return accountList(res), nil
}

// Accounts returns the accounts already authorized, without prompting.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	res, err := c.call(ctx, methodAccounts)
	if err != nil {
		return nil, err
	}
	return accountList(res), nil
}

// Done is closed once the connection has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Pending calls fail with
// wallet.ErrProviderUnavailable. No disconnect event is emitted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	if params == nil {
		params = []any{}
	}

	c.mu.Lock()
	if c.err != nil || c.closing {
		err := c.err
		c.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return gjson.Result{}, fmt.Errorf("%w: %w", wallet.ErrProviderUnavailable, err)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return gjson.Result{}, fmt.Errorf("%s: %w: %w", method, wallet.ErrProviderUnavailable, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return gjson.Result{}, fmt.Errorf("%s: %w", method, res.err)
		}
		return res.result, nil
	case <-ctx.Done():
		c.forget(id)
		return gjson.Result{}, ctx.Err()
	}
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	var cause error
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			cause = err
			break
		}
		c.handleMessage(raw)
	}
	c.shutdown(cause)
}

// shutdown fails pending calls and, for connections the bridge dropped,
// tells listeners the provider is gone.
func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	closing := c.closing
	c.err = cause
	if closing || cause == nil {
		c.err = ErrClosed
	}
	pending := c.pending
	c.pending = make(map[uint64]chan response)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- response{err: fmt.Errorf("%w: %w", wallet.ErrProviderUnavailable, c.err)}
	}
	_ = c.conn.Close()
	close(c.done)

	if closing {
		return
	}
	c.logger.Warn("wallet bridge connection lost", "error", cause)
	c.Emit(wallet.Event{
		Kind:    wallet.EventDisconnect,
		Code:    wallet.CodeDisconnected,
		Message: "wallet bridge connection lost",
	})
}

func (c *Client) handleMessage(raw []byte) {
	if !gjson.ValidBytes(raw) {
		c.logger.Warn("dropping malformed bridge message", "size", len(raw))
		return
	}
	msg := gjson.ParseBytes(raw)

	if id := msg.Get("id"); id.Exists() && !msg.Get("method").Exists() {
		c.resolve(id, msg)
		return
	}
	if method := msg.Get("method"); method.Exists() {
		c.notify(method.String(), msg.Get("params"))
		return
	}
	c.logger.Debug("ignoring bridge message without id or method")
}

func (c *Client) resolve(id gjson.Result, msg gjson.Result) {
	key, err := strconv.ParseUint(id.Raw, 10, 64)
	if err != nil {
		c.logger.Warn("bridge response with unexpected id", "id", id.Raw)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()
	if !ok {
		return
	}

	if rpcErr := msg.Get("error"); rpcErr.Exists() {
		ch <- response{err: &wallet.RPCError{
			Code:    int(rpcErr.Get("code").Int()),
			Message: rpcErr.Get("message").String(),
		}}
		return
	}
	ch <- response{result: msg.Get("result")}
}

func (c *Client) notify(method string, params gjson.Result) {
	// Some bridges wrap the payload in a single-element params array.
	if first := params.Get("0"); params.IsArray() && (first.IsArray() || first.IsObject() || method != string(wallet.EventAccountsChanged)) {
		params = first
	}

	var ev wallet.Event
	switch wallet.EventKind(method) {
	case wallet.EventAccountsChanged:
		ev = wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: accountList(params)}
	case wallet.EventChainChanged:
		ev = wallet.Event{Kind: wallet.EventChainChanged, ChainID: params.String()}
	case wallet.EventConnect:
		ev = wallet.Event{Kind: wallet.EventConnect, ChainID: params.Get("chainId").String()}
	case wallet.EventDisconnect:
		ev = wallet.Event{
			Kind:    wallet.EventDisconnect,
			Code:    int(params.Get("code").Int()),
			Message: params.Get("message").String(),
		}
	default:
		c.logger.Debug("ignoring bridge notification", "method", method)
		return
	}
	c.Emit(ev)
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("wallet bridge ping failed", "error", err)
			}
		}
	}
}

func accountList(res gjson.Result) []string {
	items := res.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}

var _ wallet.Provider = (*Client)(nil)
