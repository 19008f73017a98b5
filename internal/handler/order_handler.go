package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
)

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type OrderHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

func (h *OrderHandler) Register(r gin.IRouter) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/purchase", h.ListPurchaseOrders)
	r.POST("/orders/purchase", h.CreatePurchaseOrder)
	r.GET("/orders/purchase/:id", h.GetPurchaseOrder)
	r.GET("/orders/sales", h.ListSalesOrders)
	r.POST("/orders/sales", h.CreateSalesOrder)
	r.GET("/orders/sales/:id", h.GetSalesOrder)
	r.PATCH("/orders/:id/status", h.UpdateOrderStatus)
}

// CreateOrder accepts either order variant, selected by the "type" field.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respondMalformed(c, h.logger, err)
		return
	}
	order, err := domain.DecodeOrder(raw)
	if err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	created, err := h.orderService.CreateOrder(c.Request.Context(), order)
	if err != nil {
		respondError(c, h.logger, err, "create order")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *OrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req domain.PurchaseOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	order, err := h.orderService.CreatePurchaseOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "create purchase order")
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) CreateSalesOrder(c *gin.Context) {
	var req domain.SalesOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	order, err := h.orderService.CreateSalesOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "create sales order")
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetPurchaseOrder(c *gin.Context) {
	order, err := h.orderService.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "get purchase order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetSalesOrder(c *gin.Context) {
	order, err := h.orderService.GetSalesOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "get sales order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListPurchaseOrders(c *gin.Context) {
	orders, err := h.orderService.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "list purchase orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListSalesOrders(c *gin.Context) {
	orders, err := h.orderService.ListSalesOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "list sales orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, err, "update order status")
		return
	}
	c.JSON(http.StatusOK, order)
}
