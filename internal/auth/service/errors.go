package service

import (
	"context"
	"errors"

	"tradegate/internal/wallet"
	dErrors "tradegate/pkg/domain-errors"
)

const (
	msgProviderUnavailable = "No wallet provider is installed. Please install a wallet to continue."
	msgUserRejected        = "Please connect your wallet. Request was rejected."
	msgRequestPending      = "Please unlock your wallet and try again."
	msgNoAccounts          = "No accounts found. Please check your wallet configuration."
	msgWalletTimeout       = "The wallet did not respond. Please try again."
	msgConnectFailed       = "Failed to connect wallet"
	msgSuperseded          = "connect superseded by a newer wallet event"
	msgNotConnected        = "connect a wallet before onboarding"
)

// translateProviderError maps provider failures onto coded errors carrying
// the message shown to the user.
func translateProviderError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return dErrors.Wrap(err, dErrors.CodeUserRejected, msgUserRejected)
	case errors.Is(err, wallet.ErrRequestPending):
		return dErrors.Wrap(err, dErrors.CodeRequestPending, msgRequestPending)
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, msgProviderUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, msgWalletTimeout)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msgConnectFailed)
	}
}

// errorMessage is the text stored in the session error slot. Persistence
// failures keep the store's own message so operators can see what broke.
func errorMessage(err error) string {
	if dErrors.CodeOf(err) == dErrors.CodePersistenceFailure {
		return err.Error()
	}
	return dErrors.MessageOf(err)
}

func superseded() error {
	return dErrors.New(dErrors.CodeSuperseded, msgSuperseded)
}
