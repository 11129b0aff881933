package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agrocredit-engine/internal/api_gateway/handler"
	"github.com/agrocredit-engine/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	dealHandler *handler.DealHandler,
	creditHandler *handler.CreditHandler,
	periodHandler *handler.PeriodHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.GET("/:id/deals", dealHandler.ListByAccount)
			accounts.GET("/:id/credit-score", creditHandler.GetScore)
			accounts.GET("/:id/credit-profile", creditHandler.GetProfile)
			accounts.GET("/:id/statistics", accountHandler.GetStatistics)
		}

		// Financing contract operations
		deals := v1.Group("/deals")
		{
			deals.POST("", dealHandler.Create)
			deals.GET("/:id", dealHandler.GetByID)
			deals.POST("/:id/payments", dealHandler.MakePayment)
			deals.PUT("/:id/payment-mode", dealHandler.SetPaymentMode)
			deals.PUT("/:id/multiplier", dealHandler.SetPaymentMultiplier)
			deals.DELETE("/:id", dealHandler.Cancel)
			deals.GET("/:id/payoff", dealHandler.PayoffQuote)
		}

		// Credit eligibility checks
		credit := v1.Group("/credit")
		{
			credit.POST("/eligibility", creditHandler.CheckEligibility)
		}

		// Simulated month advancement
		periods := v1.Group("/periods")
		{
			periods.POST("/advance", periodHandler.Advance)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
