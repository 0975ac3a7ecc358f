package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/handler"
	"stockledger/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	logger logrus.FieldLogger,
	allowedOrigins []string,
	ledgerH *handler.LedgerHandler,
	syncH *handler.SyncHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	sync := v1.Group("/sync")
	sync.POST("/consumption", syncH.Consumption)
	sync.POST("/sales", syncH.Sales)
	sync.GET("/runs", syncH.Runs)

	balance := v1.Group("/balance-stock")
	balance.GET("", ledgerH.BalanceStock)
	balance.GET("/export", ledgerH.ExportBalanceStock)
	balance.POST("/recalculate", ledgerH.RecalculateBalanceStock)

	purchases := v1.Group("/purchases")
	purchases.POST("", ledgerH.CreatePurchase)
	purchases.GET("", ledgerH.ListPurchases)
	purchases.DELETE("/:id", ledgerH.Delete(domain.EventKindPurchase))

	sales := v1.Group("/sales")
	sales.GET("", ledgerH.ListSales)
	sales.DELETE("/:id", ledgerH.Delete(domain.EventKindSale))

	consumptions := v1.Group("/consumptions")
	consumptions.GET("", ledgerH.ListConsumptions)
	consumptions.DELETE("/:id", ledgerH.Delete(domain.EventKindConsumption))

	return r
}
