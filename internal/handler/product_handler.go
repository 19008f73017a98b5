package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/validation"
)

// StockMovementRequest is the body of the receive and deduct endpoints.
type StockMovementRequest struct {
	Quantity      int      `json:"quantity"`
	SerialNumbers []string `json:"serialNumbers"`
}

type ProductHandler struct {
	productService *service.ProductService
	logger         *zap.Logger
}

func NewProductHandler(productService *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

func (h *ProductHandler) Register(r gin.IRouter) {
	r.GET("/products", h.ListProducts)
	r.GET("/products/search", h.SearchProducts)
	r.GET("/products/low-stock", h.LowStockProducts)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/products", h.CreateProduct)
	r.PATCH("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
	r.POST("/products/:id/receive", h.ReceiveStock)
	r.POST("/products/:id/deduct", h.DeductStock)
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "list products")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) SearchProducts(c *gin.Context) {
	products, err := h.productService.SearchProducts(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err, "search products")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) LowStockProducts(c *gin.Context) {
	products, err := h.productService.LowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "list low-stock products")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "get product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req domain.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "create product")
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var patch domain.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, err, "update product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "delete product")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) ReceiveStock(c *gin.Context) {
	h.moveStock(c, h.productService.ReceiveStock, "receive stock")
}

func (h *ProductHandler) DeductStock(c *gin.Context) {
	h.moveStock(c, h.productService.DeductStock, "deduct stock")
}

type stockMove func(ctx context.Context, id int64, quantity int, serials []string) (*domain.Product, error)

func (h *ProductHandler) moveStock(c *gin.Context, move stockMove, action string) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req StockMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMalformed(c, h.logger, err)
		return
	}
	if req.Quantity <= 0 {
		respondError(c, h.logger, validation.Errors{{Field: "quantity", Message: "must be greater than 0"}}, action)
		return
	}

	product, err := move(c.Request.Context(), id, req.Quantity, req.SerialNumbers)
	if err != nil {
		respondError(c, h.logger, err, action)
		return
	}
	c.JSON(http.StatusOK, product)
}
