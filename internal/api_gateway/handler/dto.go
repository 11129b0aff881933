package handler

// CreateAccountRequest represents a request to create a new account
type CreateAccountRequest struct {
	OwnerName      string `json:"owner_name" binding:"required"`
	FarmName       string `json:"farm_name" binding:"required"`
	InitialBalance string `json:"initial_balance,omitempty"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	OwnerName string `json:"owner_name"`
	FarmName  string `json:"farm_name"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateDealRequest represents a request to originate a financing contract.
// Lease and collateral fields apply to their respective kinds only.
type CreateDealRequest struct {
	AccountID   string `json:"account_id" binding:"required,uuid"`
	Kind        string `json:"kind" binding:"required,oneof=FINANCE LEASE CASH_LOAN"`
	ItemKind    string `json:"item_kind" binding:"omitempty,oneof=VEHICLE EQUIPMENT LAND"`
	AssetID     string `json:"asset_id,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	Price       string `json:"price" binding:"required"`
	DownPayment string `json:"down_payment,omitempty"`
	CashBack    string `json:"cash_back,omitempty"`
	TermMonths  int    `json:"term_months" binding:"required,gt=0"`
	Period      string `json:"period" binding:"required"`

	ResidualValue   string `json:"residual_value,omitempty"`
	SecurityDeposit string `json:"security_deposit,omitempty"`
	TradeInValue    string `json:"trade_in_value,omitempty"`

	Collateral []string `json:"collateral,omitempty"`
	Purpose    string   `json:"purpose,omitempty"`
}

// DealResponse represents a financing contract in API responses
type DealResponse struct {
	ID                  string            `json:"id"`
	AccountID           string            `json:"account_id"`
	Kind                string            `json:"kind"`
	Status              string            `json:"status"`
	ItemKind            string            `json:"item_kind"`
	ItemName            string            `json:"item_name"`
	OriginalPrice       string            `json:"original_price"`
	DownPayment         string            `json:"down_payment"`
	CashBack            string            `json:"cash_back"`
	AmountFinanced      string            `json:"amount_financed"`
	TermMonths          int               `json:"term_months"`
	AnnualRate          string            `json:"annual_rate"`
	MonthlyPayment      string            `json:"monthly_payment"`
	CurrentBalance      string            `json:"current_balance"`
	AccruedInterest     string            `json:"accrued_interest"`
	MonthsPaid          int               `json:"months_paid"`
	TotalInterestPaid   string            `json:"total_interest_paid"`
	MissedPayments      int               `json:"missed_payments"`
	PaymentMode         string            `json:"payment_mode"`
	PaymentMultiplier   string            `json:"payment_multiplier"`
	LastPaymentAmount   string            `json:"last_payment_amount"`
	LastProcessedPeriod string            `json:"last_processed_period,omitempty"`
	CreatedPeriod       string            `json:"created_period"`
	Lease               *LeaseResponse    `json:"lease,omitempty"`
	Repossessed         []RepossessedItem `json:"repossessed,omitempty"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
}

// LeaseResponse carries the lease-only terms in API responses
type LeaseResponse struct {
	ResidualValue   string `json:"residual_value"`
	SecurityDeposit string `json:"security_deposit"`
	Depreciation    string `json:"depreciation"`
	TradeInValue    string `json:"trade_in_value"`
}

// RepossessedItem represents a seizure history entry in API responses
type RepossessedItem struct {
	AssetID  string `json:"asset_id"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	NotFound bool   `json:"not_found,omitempty"`
	Period   string `json:"period"`
}

// MakePaymentRequest posts a manual payment against a deal
type MakePaymentRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// PaymentResultResponse summarizes a posted manual payment
type PaymentResultResponse struct {
	Charged       string `json:"charged"`
	InterestPaid  string `json:"interest_paid"`
	PrincipalPaid string `json:"principal_paid"`
	Penalty       string `json:"penalty"`
	MonthsCovered int    `json:"months_covered"`
	PaidOff       bool   `json:"paid_off"`
}

// SetPaymentModeRequest switches a deal's payment mode
type SetPaymentModeRequest struct {
	Mode         string `json:"mode" binding:"required,oneof=SKIP MINIMUM STANDARD EXTRA CUSTOM"`
	CustomAmount string `json:"custom_amount,omitempty"`
}

// SetMultiplierRequest adjusts the standard-mode acceleration factor
type SetMultiplierRequest struct {
	Multiplier string `json:"multiplier" binding:"required"`
}

// EligibilityRequest asks whether an account may use a product
type EligibilityRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	Product   string `json:"product" binding:"required"`
}

// AdvancePeriodRequest triggers the monthly batch for a period
type AdvancePeriodRequest struct {
	Period      string `json:"period" binding:"required"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
