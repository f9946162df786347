package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/middleware"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
	receiptService *service.ReceiptService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, receiptService *service.ReceiptService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		receiptService: receiptService,
	}
}

// CreateBookingRequest is the HTTP request body for reserving seats.
type CreateBookingRequest struct {
	TripID         string `json:"trip_id" binding:"required"`
	NumberOfSeats  int    `json:"number_of_seats" binding:"required,gt=0"`
	PassengerName  string `json:"passenger_name" binding:"required"`
	PassengerPhone string `json:"passenger_phone" binding:"required"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	TripID         string          `json:"trip_id"`
	NumberOfSeats  int             `json:"number_of_seats"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Status         string          `json:"status"`
	PassengerName  string          `json:"passenger_name"`
	PassengerPhone string          `json:"passenger_phone"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		TripID:         b.TripID,
		NumberOfSeats:  b.NumberOfSeats,
		TotalPrice:     b.TotalPrice,
		Status:         string(b.Status),
		PassengerName:  b.PassengerName,
		PassengerPhone: b.PassengerPhone,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.Reserve(c.Request.Context(), service.ReserveRequest{
		UserID:         middleware.GetUserID(c),
		TripID:         req.TripID,
		NumberOfSeats:  req.NumberOfSeats,
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"booking": toBookingResponse(booking),
	})
}

// ListBookings handles GET /v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}

	respondJSON(c, http.StatusOK, gin.H{"bookings": out})
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"booking": toBookingResponse(booking)})
}

// CancelBooking handles DELETE /v1/bookings/:id
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	booking, err := h.bookingService.Cancel(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"message": "Booking cancelled successfully",
		"booking": toBookingResponse(booking),
	})
}

// GetReceipt handles GET /v1/bookings/:id/receipt
func (h *BookingHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := h.receiptService.RenderPDF(receipt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, receipt.Number))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
