package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers holds all HTTP handlers for the sales service.
type Handlers struct {
	orderService    *service.OrderService
	productService  *service.ProductService
	customerService *service.CustomerService
	db              Pinger
	config          *config.Config
	logger          *logrus.Entry
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	productService *service.ProductService,
	customerService *service.CustomerService,
	db Pinger,
	cfg *config.Config,
	logger *logrus.Entry,
) *Handlers {
	return &Handlers{
		orderService:    orderService,
		productService:  productService,
		customerService: customerService,
		db:              db,
		config:          cfg,
		logger:          logger,
	}
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.ToLower(fe.Field())
			h.handleError(c, apperrors.NewValidationError(field, field+" failed the '"+fe.Tag()+"' check"))
			return false
		}
		h.logger.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Warn("Failed to bind request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parsePage reads skip and limit. Absent values are 0; the services apply
// the default page size.
func parsePage(c *gin.Context) (int, int, bool) {
	values := [2]int{}
	for i, name := range []string{"skip", "limit"} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return 0, 0, false
		}
		values[i] = v
	}
	return values[0], values[1], true
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		details := gin.H{"field": validationErr.Field}
		for k, v := range validationErr.Details {
			details[k] = v
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"details": details,
		})
		return
	}

	var notFoundErr *apperrors.NotFoundError
	if errors.As(err, &notFoundErr) {
		resp := gin.H{"error": notFoundErr.Error()}
		if len(notFoundErr.Details) > 0 {
			resp["details"] = notFoundErr.Details
		}
		c.JSON(http.StatusNotFound, resp)
		return
	}

	var conflictErr *apperrors.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   conflictErr.Message,
			"details": gin.H{"field": conflictErr.Field},
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"error":  err.Error(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
