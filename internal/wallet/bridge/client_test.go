package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/wallet"
)

// fakeBridge accepts one websocket connection and lets the test read
// requests and write arbitrary frames.
type fakeBridge struct {
	server *httptest.Server
	conns  chan *websocket.Conn
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	fb := &fakeBridge{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.conns <- conn
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(fb.server.URL, "http")
}

func connect(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	fb := newFakeBridge(t)
	c, err := Dial(context.Background(), fb.url(), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	select {
	case conn := <-fb.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return c, conn
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never accepted the connection")
		return nil, nil
	}
}

func readRequest(t *testing.T, conn *websocket.Conn) request {
	t.Helper()
	var req request
	require.NoError(t, conn.ReadJSON(&req))
	return req
}

type callResult struct {
	accounts []string
	err      error
}

func TestRequestAccounts(t *testing.T) {
	c, conn := connect(t)

	done := make(chan callResult, 1)
	go func() {
		accounts, err := c.RequestAccounts(context.Background())
		done <- callResult{accounts, err}
	}()

	req := readRequest(t, conn)
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, methodRequestAccounts, req.Method)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  []string{"0xAbC0000000000000000000000000000000000001"},
	}))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{"0xAbC0000000000000000000000000000000000001"}, res.accounts)
}

func TestAccountsUsesNonInteractiveMethod(t *testing.T) {
	c, conn := connect(t)

	done := make(chan callResult, 1)
	go func() {
		accounts, err := c.Accounts(context.Background())
		done <- callResult{accounts, err}
	}()

	req := readRequest(t, conn)
	assert.Equal(t, methodAccounts, req.Method)
	require.NoError(t, conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": []string{}}))

	res := <-done
	require.NoError(t, res.err)
	assert.Empty(t, res.accounts)
}

func TestRPCErrorsMapToWalletKinds(t *testing.T) {
	cases := map[string]struct {
		code int
		want error
	}{
		"rejected":           {wallet.CodeUserRejected, wallet.ErrUserRejected},
		"pending":            {wallet.CodeResourceUnavailable, wallet.ErrRequestPending},
		"disconnected":       {wallet.CodeDisconnected, wallet.ErrProviderUnavailable},
		"chain disconnected": {wallet.CodeChainDisconnected, wallet.ErrProviderUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, conn := connect(t)

			done := make(chan callResult, 1)
			go func() {
				accounts, err := c.RequestAccounts(context.Background())
				done <- callResult{accounts, err}
			}()

			req := readRequest(t, conn)
			require.NoError(t, conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": tc.code, "message": name},
			}))

			res := <-done
			require.Error(t, res.err)
			assert.ErrorIs(t, res.err, tc.want)
			var rpcErr *wallet.RPCError
			require.ErrorAs(t, res.err, &rpcErr)
			assert.Equal(t, tc.code, rpcErr.Code)
		})
	}
}

func TestNotificationsReachListeners(t *testing.T) {
	c, conn := connect(t)

	var mu sync.Mutex
	var got []wallet.Event
	record := func(ev wallet.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	}
	for _, kind := range []wallet.EventKind{wallet.EventAccountsChanged, wallet.EventChainChanged, wallet.EventConnect, wallet.EventDisconnect} {
		c.On(kind, record)
	}

	frames := []string{
		`{"jsonrpc":"2.0","method":"accountsChanged","params":["0xab","0xcd"]}`,
		`{"jsonrpc":"2.0","method":"accountsChanged","params":[[]]}`,
		`{"jsonrpc":"2.0","method":"chainChanged","params":"0x89"}`,
		`{"jsonrpc":"2.0","method":"connect","params":[{"chainId":"0x1"}]}`,
		`{"jsonrpc":"2.0","method":"wallet_unknownEvent","params":{}}`,
		`not json`,
		`{"jsonrpc":"2.0","method":"disconnect","params":{"code":4900,"message":"bye"}}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: []string{"0xab", "0xcd"}}, got[0])
	assert.Equal(t, wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: []string{}}, got[1])
	assert.Equal(t, wallet.Event{Kind: wallet.EventChainChanged, ChainID: "0x89"}, got[2])
	assert.Equal(t, wallet.Event{Kind: wallet.EventConnect, ChainID: "0x1"}, got[3])
	assert.Equal(t, wallet.Event{Kind: wallet.EventDisconnect, Code: 4900, Message: "bye"}, got[4])
}

func TestBridgeDropFailsPendingAndEmitsDisconnect(t *testing.T) {
	c, conn := connect(t)

	disconnected := make(chan wallet.Event, 1)
	c.On(wallet.EventDisconnect, func(ev wallet.Event) { disconnected <- ev })

	done := make(chan callResult, 1)
	go func() {
		accounts, err := c.RequestAccounts(context.Background())
		done <- callResult{accounts, err}
	}()
	readRequest(t, conn)
	require.NoError(t, conn.Close())

	res := <-done
	assert.ErrorIs(t, res.err, wallet.ErrProviderUnavailable)

	select {
	case ev := <-disconnected:
		assert.Equal(t, wallet.CodeDisconnected, ev.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a disconnect event")
	}
	<-c.Done()

	_, err := c.Accounts(context.Background())
	assert.ErrorIs(t, err, wallet.ErrProviderUnavailable)
}

func TestCloseFailsPendingWithoutDisconnectEvent(t *testing.T) {
	c, conn := connect(t)

	c.On(wallet.EventDisconnect, func(wallet.Event) { t.Error("unexpected disconnect event") })

	done := make(chan callResult, 1)
	go func() {
		accounts, err := c.RequestAccounts(context.Background())
		done <- callResult{accounts, err}
	}()
	readRequest(t, conn)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	res := <-done
	assert.ErrorIs(t, res.err, wallet.ErrProviderUnavailable)

	_, err := c.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallerCancellation(t *testing.T) {
	c, conn := connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan callResult, 1)
	go func() {
		accounts, err := c.RequestAccounts(ctx)
		done <- callResult{accounts, err}
	}()
	req := readRequest(t, conn)
	cancel()

	res := <-done
	assert.ErrorIs(t, res.err, context.Canceled)

	// A late answer for the abandoned id is dropped.
	require.NoError(t, conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": []string{"0xab"}}))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.pending)
}

func TestDialFailureIsProviderUnavailable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/bridge")
	assert.ErrorIs(t, err, wallet.ErrProviderUnavailable)
}
