package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyOwnerName    = errors.New("owner name cannot be empty")
	ErrEmptyFarmName     = errors.New("farm name cannot be empty")
)

// Account is a player's money ledger in the farming economy. All financing
// charges and disbursals move through it.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerName string          `json:"owner_name"`
	FarmName  string          `json:"farm_name"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int             `json:"version"` // Optimistic locking; bumped by the repository on persist
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount creates a new account with the given starting balance
func NewAccount(ownerName, farmName string, startingBalance decimal.Decimal) (*Account, error) {
	if ownerName == "" {
		return nil, ErrEmptyOwnerName
	}
	if farmName == "" {
		return nil, ErrEmptyFarmName
	}
	if startingBalance.IsNegative() {
		return nil, ErrInvalidAmount
	}

	return &Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		FarmName:  farmName,
		Balance:   startingBalance,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Deposit adds the specified amount to the account balance
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// Withdraw subtracts the specified amount from the account balance
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// CanWithdraw checks if the account has sufficient funds for a withdrawal
func (a *Account) CanWithdraw(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
