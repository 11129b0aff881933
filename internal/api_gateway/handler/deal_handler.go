package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/agrocredit-engine/internal/api_gateway/service"
	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealHandler handles HTTP requests for financing contract operations
type DealHandler struct {
	dealService service.DealService
	logger      *slog.Logger
}

// NewDealHandler creates a new deal handler
func NewDealHandler(logger *slog.Logger, dealService service.DealService) *DealHandler {
	return &DealHandler{
		dealService: dealService,
		logger:      logger,
	}
}

// Create originates a financing contract. The kind field selects the
// variant; lease and collateral fields are only consulted for theirs.
func (h *DealHandler) Create(c *gin.Context) {
	var req CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var d *deal.Deal
	switch deal.Kind(req.Kind) {
	case deal.KindFinance:
		params, perr := h.buildDealParams(accountID, &req)
		if perr != nil {
			RespondBadRequest(c, perr.Error())
			return
		}
		d, err = h.dealService.CreateFinanceDeal(c.Request.Context(), params)
	case deal.KindLease:
		params, perr := h.buildLeaseParams(accountID, &req)
		if perr != nil {
			RespondBadRequest(c, perr.Error())
			return
		}
		d, err = h.dealService.CreateLeaseDeal(c.Request.Context(), params)
	case deal.KindCashLoan:
		params, perr := h.buildCashLoanParams(accountID, &req)
		if perr != nil {
			RespondBadRequest(c, perr.Error())
			return
		}
		d, err = h.dealService.CreateCashLoan(c.Request.Context(), params)
	default:
		RespondBadRequest(c, "Unknown deal kind: "+req.Kind)
		return
	}
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondCreated(c, mapDealToResponse(d))
}

// GetByID retrieves a deal by its ID
func (h *DealHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	d, err := h.dealService.GetDealByID(c.Request.Context(), id)
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondOK(c, mapDealToResponse(d))
}

// ListByAccount lists all deals belonging to an account, newest first
func (h *DealHandler) ListByAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	deals, err := h.dealService.ListDealsByAccount(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to list deals", "account_id", accountID, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]DealResponse, 0, len(deals))
	for _, d := range deals {
		responses = append(responses, mapDealToResponse(d))
	}
	RespondOK(c, responses)
}

// MakePayment posts a manual payment against a deal
func (h *DealHandler) MakePayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	var req MakePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondBadRequest(c, "Invalid payment amount")
		return
	}

	result, err := h.dealService.MakePayment(c.Request.Context(), id, amount)
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondOK(c, PaymentResultResponse{
		Charged:       result.Charged.StringFixed(2),
		InterestPaid:  result.InterestPaid.StringFixed(2),
		PrincipalPaid: result.PrincipalPaid.StringFixed(2),
		Penalty:       result.Penalty.StringFixed(2),
		MonthsCovered: result.MonthsCovered,
		PaidOff:       result.PaidOff,
	})
}

// SetPaymentMode switches a deal's payment mode
func (h *DealHandler) SetPaymentMode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	var req SetPaymentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customAmount := decimal.Zero
	if req.CustomAmount != "" {
		customAmount, err = decimal.NewFromString(req.CustomAmount)
		if err != nil {
			RespondBadRequest(c, "Invalid custom amount")
			return
		}
	}

	d, err := h.dealService.SetPaymentMode(c.Request.Context(), id, deal.PaymentMode(req.Mode), customAmount)
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondOK(c, mapDealToResponse(d))
}

// SetPaymentMultiplier adjusts the standard-mode acceleration factor
func (h *DealHandler) SetPaymentMultiplier(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	var req SetMultiplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	multiplier, err := decimal.NewFromString(req.Multiplier)
	if err != nil {
		RespondBadRequest(c, "Invalid multiplier")
		return
	}

	d, err := h.dealService.SetPaymentMultiplier(c.Request.Context(), id, multiplier)
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondOK(c, mapDealToResponse(d))
}

// Cancel voids a deal with no payment activity yet
func (h *DealHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	if err := h.dealService.CancelDeal(c.Request.Context(), id); err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondNoContent(c)
}

// PayoffQuote returns the cost of settling a deal today
func (h *DealHandler) PayoffQuote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid deal ID")
		return
	}

	quote, err := h.dealService.PayoffQuote(c.Request.Context(), id)
	if err != nil {
		h.respondDealError(c, err)
		return
	}

	RespondOK(c, quote)
}

func (h *DealHandler) buildDealParams(accountID uuid.UUID, req *CreateDealRequest) (service.CreateDealParams, error) {
	params := service.CreateDealParams{
		AccountID:  accountID,
		ItemKind:   deal.ItemKind(req.ItemKind),
		ItemName:   req.ItemName,
		TermMonths: req.TermMonths,
		Period:     req.Period,
	}

	if req.AssetID != "" {
		assetID, err := uuid.Parse(req.AssetID)
		if err != nil {
			return params, errors.New("invalid asset ID")
		}
		params.AssetID = assetID
	}

	var err error
	if params.Price, err = parseAmount(req.Price, "price"); err != nil {
		return params, err
	}
	if params.DownPayment, err = parseOptionalAmount(req.DownPayment, "down payment"); err != nil {
		return params, err
	}
	if params.CashBack, err = parseOptionalAmount(req.CashBack, "cash back"); err != nil {
		return params, err
	}
	return params, nil
}

func (h *DealHandler) buildLeaseParams(accountID uuid.UUID, req *CreateDealRequest) (service.CreateLeaseParams, error) {
	base, err := h.buildDealParams(accountID, req)
	if err != nil {
		return service.CreateLeaseParams{}, err
	}

	params := service.CreateLeaseParams{CreateDealParams: base}
	if params.ResidualValue, err = parseOptionalAmount(req.ResidualValue, "residual value"); err != nil {
		return params, err
	}
	if params.SecurityDeposit, err = parseOptionalAmount(req.SecurityDeposit, "security deposit"); err != nil {
		return params, err
	}
	if params.TradeInValue, err = parseOptionalAmount(req.TradeInValue, "trade-in value"); err != nil {
		return params, err
	}
	return params, nil
}

func (h *DealHandler) buildCashLoanParams(accountID uuid.UUID, req *CreateDealRequest) (service.CreateCashLoanParams, error) {
	params := service.CreateCashLoanParams{
		AccountID:  accountID,
		TermMonths: req.TermMonths,
		Purpose:    req.Purpose,
		Period:     req.Period,
	}

	var err error
	if params.Principal, err = parseAmount(req.Price, "principal"); err != nil {
		return params, err
	}

	for _, raw := range req.Collateral {
		assetID, err := uuid.Parse(raw)
		if err != nil {
			return params, errors.New("invalid collateral asset ID: " + raw)
		}
		params.Collateral = append(params.Collateral, assetID)
	}
	return params, nil
}

// respondDealError maps service and domain errors onto HTTP statuses.
// Malformed terms are 400s, affordability failures are 422s, credit and
// configuration gates are 403s.
func (h *DealHandler) respondDealError(c *gin.Context, err error) {
	var dealNotFound deal.ErrDealNotFound
	var assetNotFound service.ErrAssetNotFound
	var accNotFound account.ErrAccountNotFound
	var scoreTooLow service.ErrScoreTooLow

	switch {
	case errors.As(err, &dealNotFound):
		RespondNotFound(c, "Deal not found")
	case errors.As(err, &accNotFound):
		RespondNotFound(c, "Account not found")
	case errors.As(err, &assetNotFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &scoreTooLow):
		RespondForbidden(c, err.Error())
	case errors.Is(err, service.ErrProductDisabled):
		RespondForbidden(c, err.Error())
	case errors.Is(err, deal.ErrPaymentTooLow),
		errors.Is(err, deal.ErrPaymentTooHigh),
		errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, err.Error())
	case errors.Is(err, deal.ErrInvalidPrice),
		errors.Is(err, deal.ErrInvalidDownPayment),
		errors.Is(err, deal.ErrInvalidCashBack),
		errors.Is(err, deal.ErrTermOutOfBounds),
		errors.Is(err, deal.ErrInvalidRate),
		errors.Is(err, deal.ErrInvalidMultiplier),
		errors.Is(err, deal.ErrMissingCollateral),
		errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, service.ErrInsufficientCollateral),
		errors.Is(err, service.ErrCollateralNotOwned):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, deal.ErrDealNotActive),
		errors.Is(err, deal.ErrAlreadyStarted):
		RespondConflict(c, err.Error())
	default:
		h.logger.Error("Deal operation failed", "error", err)
		RespondInternalError(c)
	}
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("missing " + field)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New("invalid " + field)
	}
	return amount, nil
}

func parseOptionalAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseAmount(raw, field)
}

// mapDealToResponse maps a deal entity to a deal response DTO
func mapDealToResponse(d *deal.Deal) DealResponse {
	resp := DealResponse{
		ID:                  d.ID.String(),
		AccountID:           d.AccountID.String(),
		Kind:                string(d.Kind),
		Status:              string(d.Status),
		ItemKind:            string(d.Item.Kind),
		ItemName:            d.Item.Name,
		OriginalPrice:       d.OriginalPrice.StringFixed(2),
		DownPayment:         d.DownPayment.StringFixed(2),
		CashBack:            d.CashBack.StringFixed(2),
		AmountFinanced:      d.AmountFinanced.StringFixed(2),
		TermMonths:          d.TermMonths,
		AnnualRate:          d.AnnualRate.StringFixed(2),
		MonthlyPayment:      d.MonthlyPayment.StringFixed(2),
		CurrentBalance:      d.CurrentBalance.StringFixed(2),
		AccruedInterest:     d.AccruedInterest.StringFixed(2),
		MonthsPaid:          d.MonthsPaid,
		TotalInterestPaid:   d.TotalInterestPaid.StringFixed(2),
		MissedPayments:      d.MissedPayments,
		PaymentMode:         string(d.PaymentMode),
		PaymentMultiplier:   d.PaymentMultiplier.StringFixed(2),
		LastPaymentAmount:   d.LastPaymentAmount.StringFixed(2),
		LastProcessedPeriod: d.LastProcessedPeriod,
		CreatedPeriod:       d.CreatedPeriod,
		CreatedAt:           d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           d.UpdatedAt.Format(time.RFC3339),
	}

	if d.Lease != nil {
		resp.Lease = &LeaseResponse{
			ResidualValue:   d.Lease.ResidualValue.StringFixed(2),
			SecurityDeposit: d.Lease.SecurityDeposit.StringFixed(2),
			Depreciation:    d.Lease.Depreciation.StringFixed(2),
			TradeInValue:    d.Lease.TradeInValue.StringFixed(2),
		}
	}
	for _, item := range d.Repossessed {
		resp.Repossessed = append(resp.Repossessed, RepossessedItem{
			AssetID:  item.AssetID.String(),
			Name:     item.Name,
			Value:    item.Value.StringFixed(2),
			NotFound: item.NotFound,
			Period:   item.Period,
		})
	}
	return resp
}
