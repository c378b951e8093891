package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vendor-service/internal/reliability"
	"vendor-service/internal/service"
	"vendor-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SupplierAPI is the supplier service as seen by the HTTP layer
type SupplierAPI interface {
	Register(ctx context.Context, req *service.RegisterSupplierRequest) (*service.SupplierView, error)
	PlaceOrder(ctx context.Context, supplierID uuid.UUID, req *service.PlaceOrderRequest) (*service.SupplierView, error)
	ConfirmDelivery(ctx context.Context, supplierID, orderID uuid.UUID, req *service.ConfirmDeliveryRequest) (*service.SupplierView, error)
	SetDeliveryRating(ctx context.Context, supplierID uuid.UUID, rating float64) (*service.SupplierView, error)
	Remove(ctx context.Context, supplierID uuid.UUID) error
	GetSupplier(ctx context.Context, supplierID uuid.UUID) (*service.SupplierView, error)
	ListSuppliers(ctx context.Context, f service.ListFilter) ([]service.SupplierView, int64, error)
	Alternatives(ctx context.Context, supplierID uuid.UUID) ([]service.SupplierView, error)
	DelayOutlook(ctx context.Context, supplierID uuid.UUID) (reliability.DelayOutlook, error)
	Dashboard(ctx context.Context) (reliability.Summary, error)
}

// LiveStream upgrades dashboard connections for live updates
type LiveStream interface {
	ServeWS(c *gin.Context)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	suppliers SupplierAPI
	live      LiveStream
	checks    map[string]ReadinessCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. live may be nil.
func NewHandler(suppliers SupplierAPI, live LiveStream, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		suppliers: suppliers,
		live:      live,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

type deliveryRatingRequest struct {
	DeliveryRating *float64 `json:"delivery_rating" binding:"required"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, allowedOrigins []string) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(allowedOrigins))
	router.Use(prometheusMiddleware())
	router.Use(accessLogMiddleware(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.live != nil {
		router.GET("/ws", h.live.ServeWS)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/dashboard", h.dashboard)

		suppliers := v1.Group("/suppliers")
		suppliers.POST("", h.registerSupplier)
		suppliers.GET("", h.listSuppliers)
		suppliers.GET("/:id", h.getSupplier)
		suppliers.DELETE("/:id", h.removeSupplier)
		suppliers.POST("/:id/orders", h.placeOrder)
		suppliers.PUT("/:id/orders/:orderId/delivery", h.confirmDelivery)
		suppliers.PUT("/:id/delivery-rating", h.setDeliveryRating)
		suppliers.GET("/:id/alternatives", h.alternatives)
		suppliers.GET("/:id/delay-outlook", h.delayOutlook)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": util.ServiceName(),
		"time":    time.Now().Unix(),
	})
}

// readinessCheck reports not ready while any dependency check fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// registerSupplier handles supplier registration with its first order
func (h *Handler) registerSupplier(c *gin.Context) {
	var req service.RegisterSupplierRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	view, err := h.suppliers.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to register supplier", err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// listSuppliers handles paged supplier listing
func (h *Handler) listSuppliers(c *gin.Context) {
	page := parsePage(c)

	views, total, err := h.suppliers.ListSuppliers(c.Request.Context(), service.ListFilter{
		Category: c.Query("category"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		h.respondError(c, "Failed to list suppliers", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"suppliers": views,
		"page":      page.Page,
		"limit":     page.Limit,
		"total":     total,
	})
}

// getSupplier handles get supplier by ID
func (h *Handler) getSupplier(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.suppliers.GetSupplier(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to get supplier", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// removeSupplier deletes a supplier and its ledger
func (h *Handler) removeSupplier(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.suppliers.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, "Failed to remove supplier", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// placeOrder appends an order to the supplier's ledger
func (h *Handler) placeOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.suppliers.PlaceOrder(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, "Failed to place order", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// confirmDelivery records the actual delivery date of an order
func (h *Handler) confirmDelivery(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "orderId")
	if !ok {
		return
	}

	var req service.ConfirmDeliveryRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.suppliers.ConfirmDelivery(c.Request.Context(), id, orderID, &req)
	if err != nil {
		h.respondError(c, "Failed to confirm delivery", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) setDeliveryRating(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req deliveryRatingRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.suppliers.SetDeliveryRating(c.Request.Context(), id, *req.DeliveryRating)
	if err != nil {
		h.respondError(c, "Failed to set delivery rating", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// alternatives ranks same-category suppliers by score
func (h *Handler) alternatives(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	views, err := h.suppliers.Alternatives(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to rank alternatives", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alternatives": views})
}

func (h *Handler) delayOutlook(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	outlook, err := h.suppliers.DelayOutlook(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to compute delay outlook", err)
		return
	}

	c.JSON(http.StatusOK, outlook)
}

func (h *Handler) dashboard(c *gin.Context) {
	summary, err := h.suppliers.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to load dashboard", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, reliability.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reliability.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reliability.ErrInvalidState), errors.Is(err, service.ErrSupplierBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
