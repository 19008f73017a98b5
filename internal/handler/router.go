package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/middleware"
)

type DashboardHandler struct {
	productService *service.ProductService
	orderService   *service.OrderService
	logger         *zap.Logger
}

func NewDashboardHandler(productService *service.ProductService, orderService *service.OrderService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		productService: productService,
		orderService:   orderService,
		logger:         logger,
	}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	inventory, err := h.productService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "build dashboard summary")
		return
	}
	orders, err := h.orderService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "build dashboard summary")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inventory": inventory,
		"orders":    orders,
	})
}

// NewRouter builds the gin engine with middleware and every /api route.
func NewRouter(logger *zap.Logger, products *ProductHandler, orders *OrderHandler, dashboard *DashboardHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})
		products.Register(api)
		orders.Register(api)
		api.GET("/dashboard/summary", dashboard.Summary)
	}

	return router
}
