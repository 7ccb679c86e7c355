package httptransport

import (
	"tradegate/internal/auth/models"
	dErrors "tradegate/pkg/domain-errors"
)

// TradingLevelRequest is the body of POST /onboarding/trading-level.
type TradingLevelRequest struct {
	TradingLevel string `json:"trading_level"`

	parsedLevel models.TradingLevel
}

// Validate implements httputil.Validatable.
func (r *TradingLevelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	level, err := models.ParseTradingLevel(r.TradingLevel)
	if err != nil {
		return err
	}
	r.parsedLevel = level
	return nil
}

func (r *TradingLevelRequest) ParsedLevel() models.TradingLevel {
	return r.parsedLevel
}

// AccountTypeRequest is the body of POST /onboarding/account-type.
type AccountTypeRequest struct {
	AccountType string `json:"account_type"`

	parsedAccountType models.AccountType
}

// Validate implements httputil.Validatable.
func (r *AccountTypeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	accountType, err := models.ParseAccountType(r.AccountType)
	if err != nil {
		return err
	}
	r.parsedAccountType = accountType
	return nil
}

func (r *AccountTypeRequest) ParsedAccountType() models.AccountType {
	return r.parsedAccountType
}
