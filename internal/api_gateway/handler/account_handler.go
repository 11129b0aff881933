package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/agrocredit-engine/internal/api_gateway/service"
	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create handles creation of a new account, validating the request and checking for duplicate farm names
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	initialBalance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		initialBalance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			RespondBadRequest(c, "Invalid initial balance")
			return
		}
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), req.OwnerName, req.FarmName, initialBalance)
	if err != nil {
		var duplicateFarmErr account.ErrDuplicateFarmName
		if errors.As(err, &duplicateFarmErr) {
			h.logger.Warn("Attempt to create account with duplicate farm name", "farm_name", duplicateFarmErr.FarmName)
			RespondBadRequest(c, "Account with this farm name already exists")
			return
		}
		if errors.Is(err, account.ErrEmptyOwnerName) || errors.Is(err, account.ErrEmptyFarmName) || errors.Is(err, account.ErrInvalidAmount) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create account", "error", err)
		RespondInternalError(c)
		return
	}

	response := mapAccountToResponse(acc)
	RespondCreated(c, response)
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.accountService.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		var accNotFound account.ErrAccountNotFound
		if errors.As(err, &accNotFound) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	response := mapAccountToResponse(acc)
	RespondOK(c, response)
}

// GetStatistics returns the financing counters for an account
func (h *AccountHandler) GetStatistics(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	stats, err := h.accountService.GetStatistics(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get account statistics", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, stats)
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID.String(),
		OwnerName: acc.OwnerName,
		FarmName:  acc.FarmName,
		Balance:   acc.Balance.StringFixed(2),
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}
