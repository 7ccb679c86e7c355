package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrUserRejected        = errors.New("user rejected the request")
	ErrRequestPending      = errors.New("a request is already pending in the wallet")
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
)

// EIP-1193 and JSON-RPC error codes a provider reports.
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
	CodeResourceUnavailable = -32002
)

// RPCError is an error object returned by a provider. It matches the package
// sentinels with errors.Is according to its code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	switch e.Code {
	case CodeUserRejected:
		return target == ErrUserRejected
	case CodeResourceUnavailable:
		return target == ErrRequestPending
	case CodeDisconnected, CodeChainDisconnected:
		return target == ErrProviderUnavailable
	}
	return false
}
