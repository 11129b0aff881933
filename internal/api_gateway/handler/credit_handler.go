package handler

import (
	"errors"
	"log/slog"

	"github.com/agrocredit-engine/internal/api_gateway/service"
	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreditHandler handles HTTP requests for credit score operations
type CreditHandler struct {
	creditService service.CreditService
	logger        *slog.Logger
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(logger *slog.Logger, creditService service.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		logger:        logger,
	}
}

// CreditProfileResponse bundles the payment-history profile with the
// recent payment and event windows used to compute it.
type CreditProfileResponse struct {
	Profile        *credit.Profile         `json:"profile"`
	RecentPayments []*credit.PaymentRecord `json:"recent_payments"`
	RecentEvents   []*credit.Event         `json:"recent_events"`
}

// GetScore computes the current credit score for an account
func (h *CreditHandler) GetScore(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	score, err := h.creditService.CalculateScore(c.Request.Context(), accountID)
	if err != nil {
		h.respondCreditError(c, accountID, err)
		return
	}

	RespondOK(c, score)
}

// GetProfile returns the payment-history profile and its recent windows
func (h *CreditHandler) GetProfile(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	profile, payments, events, err := h.creditService.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		h.respondCreditError(c, accountID, err)
		return
	}

	RespondOK(c, CreditProfileResponse{
		Profile:        profile,
		RecentPayments: payments,
		RecentEvents:   events,
	})
}

// CheckEligibility gates a financing product behind its minimum score.
// A declined decision is still a 200; the decision carries the verdict.
func (h *CreditHandler) CheckEligibility(c *gin.Context) {
	var req EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	decision, err := h.creditService.CheckEligibility(c.Request.Context(), accountID, credit.ProductType(req.Product))
	if err != nil {
		var unknownProduct credit.ErrUnknownProduct
		if errors.As(err, &unknownProduct) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.respondCreditError(c, accountID, err)
		return
	}

	RespondOK(c, decision)
}

func (h *CreditHandler) respondCreditError(c *gin.Context, accountID uuid.UUID, err error) {
	var accNotFound account.ErrAccountNotFound
	if errors.As(err, &accNotFound) {
		RespondNotFound(c, "Account not found")
		return
	}
	h.logger.Error("Credit operation failed", "account_id", accountID, "error", err)
	RespondInternalError(c)
}
