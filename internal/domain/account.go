package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountType classifies a customer's bank account.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeTrading  AccountType = "TRADING"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeTrading:
		return true
	default:
		return false
	}
}

// ParseAccountType converts a stored value into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

// Account is a customer's cash account.
//
// AvailableBalance = Balance − Σ BlockedAmount of the account's active buy
// orders. It is maintained incrementally through deltas and never
// recomputed from the order book.
type Account struct {
	ID               string
	OwnerID          string
	Type             AccountType
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
}

// Blocked returns the amount currently reserved by open buy orders.
func (a Account) Blocked() decimal.Decimal {
	return a.Balance.Sub(a.AvailableBalance)
}

// TradingAccount returns the first TRADING account in accounts.
func TradingAccount(accounts []Account) (Account, bool) {
	for _, a := range accounts {
		if a.Type == AccountTypeTrading {
			return a, true
		}
	}
	return Account{}, false
}
