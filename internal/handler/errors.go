package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/validation"
)

const malformedPayload = "malformed payload"

var errBadID = errors.New("invalid product id")

// respondError maps service and validation errors to a status code and a
// {"error": ...} body. Anything unrecognised is logged and becomes a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error, action string) {
	if verrs, ok := validation.AsErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": verrs,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrProductExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Product with this SKU already exists"})
	case errors.Is(err, service.ErrOrderExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Order already exists"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSerialMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("Failed to "+action,
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

func respondMalformed(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("Invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": malformedPayload})
}

// productID reads the numeric :id path parameter, writing a 400 on failure.
func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadID.Error()})
		return 0, false
	}
	return id, true
}
