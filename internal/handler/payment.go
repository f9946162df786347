package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/middleware"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

// maxWebhookBody caps provider callbacks.
const maxWebhookBody = 64 << 10

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, logger logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// InitiatePaymentRequest is the HTTP request body for starting a payment.
type InitiatePaymentRequest struct {
	BookingID     string `json:"booking_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	Phone         string `json:"phone"`
}

// WebhookRequest holds the fields every provider callback carries.
type WebhookRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Amount:        p.Amount,
		PaymentMethod: string(p.Method),
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		Attempts:      p.Attempts,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// InitiatePayment handles POST /v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), service.InitiatePaymentRequest{
		BookingID: req.BookingID,
		UserID:    middleware.GetUserID(c),
		Method:    req.PaymentMethod,
		Phone:     req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"message": "Payment initiated successfully",
		"payment": toPaymentResponse(result.Payment),
	}
	if result.PaymentURL != "" {
		body["payment_url"] = result.PaymentURL
	}
	respondJSON(c, http.StatusOK, body)
}

// Webhook handles POST /v1/payments/webhook. Providers are not authenticated
// here; a callback can only settle a payment whose transaction id it knows.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	logger := h.logger.WithField("request_id", middleware.GetRequestID(c))

	raw, err := readBody(c, maxWebhookBody)
	if err != nil {
		logger.WithError(err).Warn("webhook body unreadable")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.WithError(err).Warn("webhook body is not valid JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	payment, err := h.paymentService.Reconcile(c.Request.Context(), service.ReconcileRequest{
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Payload:       raw,
	})
	if err != nil {
		entry := logger.WithError(err).WithField("transaction_id", req.TransactionID)
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, service.ErrMissingTransactionID) {
			entry.Warn("webhook rejected")
		} else {
			entry.Error("webhook processing failed")
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"message": "Webhook processed successfully",
		"status":  string(payment.Status),
	})
}

// GetPaymentStatus handles GET /v1/payments/status/:booking_id
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	payment, err := h.paymentService.Status(c.Request.Context(), c.Param("booking_id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"payment": toPaymentResponse(payment)})
}

// RefreshPaymentStatus handles POST /v1/payments/status/:booking_id/refresh
func (h *PaymentHandler) RefreshPaymentStatus(c *gin.Context) {
	payment, err := h.paymentService.Refresh(c.Request.Context(), c.Param("booking_id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"payment": toPaymentResponse(payment)})
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return c.GetRawData()
}
