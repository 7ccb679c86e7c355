package wallet

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tradegate/pkg/domain-errors"
)

func TestParseAddress(t *testing.T) {
	t.Run("lowercases valid addresses", func(t *testing.T) {
		got, err := ParseAddress(" 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed ")
		require.NoError(t, err)
		assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", got)
	})

	for _, bad := range []string{"", "0x", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaeg", "0x" + strings.Repeat("a", 41)} {
		t.Run(fmt.Sprintf("rejects %q", bad), func(t *testing.T) {
			_, err := ParseAddress(bad)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestChecksumAddress(t *testing.T) {
	// Reference vectors from EIP-55.
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		assert.Equal(t, want, ChecksumAddress(strings.ToLower(want)))
	}
	assert.Equal(t, "not-an-address", ChecksumAddress("not-an-address"))
}

func TestRPCErrorMatching(t *testing.T) {
	assert.ErrorIs(t, &RPCError{Code: CodeUserRejected}, ErrUserRejected)
	assert.ErrorIs(t, &RPCError{Code: CodeResourceUnavailable}, ErrRequestPending)
	assert.ErrorIs(t, &RPCError{Code: CodeDisconnected}, ErrProviderUnavailable)
	assert.ErrorIs(t, fmt.Errorf("request: %w", &RPCError{Code: CodeChainDisconnected}), ErrProviderUnavailable)
	assert.False(t, errors.Is(&RPCError{Code: CodeUnsupportedMethod}, ErrUserRejected))
}

func TestEmitter(t *testing.T) {
	var e Emitter
	var got []string

	first := e.On(EventAccountsChanged, func(ev Event) { got = append(got, "first:"+ev.Accounts[0]) })
	e.On(EventAccountsChanged, func(ev Event) { got = append(got, "second:"+ev.Accounts[0]) })
	e.On(EventChainChanged, func(ev Event) { got = append(got, "chain:"+ev.ChainID) })

	e.Emit(Event{Kind: EventAccountsChanged, Accounts: []string{"0xa"}})
	e.Emit(Event{Kind: EventChainChanged, ChainID: "0x1"})
	assert.Equal(t, []string{"first:0xa", "second:0xa", "chain:0x1"}, got)

	e.Off(EventAccountsChanged, first)
	e.Off(EventDisconnect, 99)
	assert.Equal(t, 1, e.ListenerCount(EventAccountsChanged))

	got = nil
	e.Emit(Event{Kind: EventAccountsChanged, Accounts: []string{"0xb"}})
	assert.Equal(t, []string{"second:0xb"}, got)
}
