package handler

import (
	"log/slog"

	"github.com/agrocredit-engine/internal/api_gateway/middleware"
	"github.com/agrocredit-engine/internal/api_gateway/service"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// PeriodHandler handles HTTP requests that advance the simulated month
type PeriodHandler struct {
	periodService service.PeriodService
	logger        *slog.Logger
}

// NewPeriodHandler creates a new period handler
func NewPeriodHandler(logger *slog.Logger, periodService service.PeriodService) *PeriodHandler {
	return &PeriodHandler{
		periodService: periodService,
		logger:        logger,
	}
}

// Advance publishes a period-changed event for asynchronous batch
// processing. The response is a 202; collection results land via the
// processor, not this request.
func (h *PeriodHandler) Advance(c *gin.Context) {
	var req AdvancePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if _, err := shared.ParsePeriod(req.Period); err != nil {
		RespondBadRequest(c, "Invalid period, expected YYYY-MM")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	if err := h.periodService.AdvancePeriod(c.Request.Context(), req.Period, req.TriggeredBy, correlationID); err != nil {
		h.logger.Error("Failed to publish period advancement", "period", req.Period, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, gin.H{"period": req.Period, "status": "PROCESSING"})
}
