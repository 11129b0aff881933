package service

import (
	"context"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	statsRepo   statistics.Repository
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo account.Repository, statsRepo statistics.Repository) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		statsRepo:   statsRepo,
	}
}

// CreateAccount creates a new account with the given details, checking for duplicate farm names
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, ownerName string, farmName string, initialBalance decimal.Decimal) (*account.Account, error) {
	existingAccount, err := s.accountRepo.GetByFarmName(ctx, farmName)
	if err != nil {
		return nil, err
	}
	if existingAccount != nil {
		return nil, account.ErrDuplicateFarmName{FarmName: farmName}
	}

	acc, err := account.NewAccount(ownerName, farmName, initialBalance)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// GetStatistics retrieves the financing counters for an account
func (s *AccountServiceImpl) GetStatistics(ctx context.Context, accountID uuid.UUID) (*statistics.AccountStatistics, error) {
	return s.statsRepo.GetByAccountID(ctx, accountID)
}
